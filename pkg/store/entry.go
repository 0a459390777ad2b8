package store

import (
	"fmt"
	"time"
)

// EntryType classifies a stored entry
type EntryType string

const (
	TypeConversation EntryType = "conversation"
	TypeDecision     EntryType = "decision"
	TypeCode         EntryType = "code"
	TypeTask         EntryType = "task"
	TypeDocument     EntryType = "document"
)

// TaskStatus is the lifecycle state of a task entry
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Priority is the urgency of a task entry
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Entry is a typed, timestamped, tagged record with an attached vector.
// Entries are append-only except for a task's status, which refreshes
// the timestamp when it changes.
type Entry struct {
	ID          string     `json:"id"`
	Type        EntryType  `json:"type"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	ProjectPath string     `json:"project_path,omitempty"`
	FilePath    string     `json:"file_path,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Status      TaskStatus `json:"status,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
}

// SearchResult is one ranked hit from a similarity search. Content is
// truncated to a preview; the full record is available via GetEntry.
type SearchResult struct {
	ID        string    `json:"id"`
	Type      EntryType `json:"type"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// ListFilters narrows a List call. Zero values match everything.
type ListFilters struct {
	ProjectPath string
	Status      TaskStatus
	Tags        []string
}

// EntryRef is a compact reference to an entry
type EntryRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// ProjectSummary aggregates a project's stored knowledge
type ProjectSummary struct {
	ProjectPath         string            `json:"project_path"`
	Counts              map[EntryType]int `json:"counts"`
	RecentConversations []EntryRef        `json:"recent_conversations"`
	RecentDecisions     []EntryRef        `json:"recent_decisions"`
}

// Stats describes the whole store
type Stats struct {
	Counts       map[EntryType]int `json:"counts"`
	ProjectPaths []string          `json:"project_paths"`
	Location     string            `json:"location"`
}

// ValidType reports whether t is a known entry type
func ValidType(t EntryType) bool {
	switch t {
	case TypeConversation, TypeDecision, TypeCode, TypeTask, TypeDocument:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known task status
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known task priority
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// normalize fills defaults and enforces the task-fields-iff-task invariant
func (e *Entry) normalize() error {
	if !ValidType(e.Type) {
		return fmt.Errorf("unknown entry type: %q", e.Type)
	}

	if e.Type == TypeTask {
		if e.Status == "" {
			e.Status = StatusPending
		}
		if e.Priority == "" {
			e.Priority = PriorityMedium
		}
		if !ValidStatus(e.Status) {
			return fmt.Errorf("unknown task status: %q", e.Status)
		}
		if !ValidPriority(e.Priority) {
			return fmt.Errorf("unknown task priority: %q", e.Priority)
		}
	} else {
		e.Status = ""
		e.Priority = ""
	}

	if e.Type != TypeCode {
		e.FilePath = ""
	}

	return nil
}
