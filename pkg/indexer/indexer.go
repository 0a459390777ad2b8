package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/milhouse/contextmem/pkg/embedding"
	"github.com/milhouse/contextmem/pkg/store"
	"github.com/rs/zerolog"
)

const (
	// maxRawTranscript bounds the raw text appended after the summary
	maxRawTranscript = 2000

	// maxTitleLen bounds the title derived from the first user message
	maxTitleLen = 80
)

// Indexer discovers a project's transcript files, summarizes them and
// stores conversation entries. The set of files indexed in this
// process's lifetime lives only in memory; a restart re-indexes
// everything, and the store has no dedup guard, so repeats duplicate.
type Indexer struct {
	store      *store.Store
	summarizer embedding.Summarizer
	agentDir   string
	watchDepth int
	logger     zerolog.Logger

	mu      sync.Mutex
	indexed map[string]bool
	watcher *watcher
}

// Config holds indexer configuration
type Config struct {
	Store      *store.Store
	Summarizer embedding.Summarizer
	AgentDir   string
	WatchDepth int
	Logger     zerolog.Logger
}

// Result reports one indexing pass
type Result struct {
	ProjectPath string `json:"project_path"`
	Indexed     int    `json:"indexed"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
}

// New creates a new conversation indexer
func New(cfg Config) (*Indexer, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.AgentDir == "" {
		return nil, errors.New("agent directory is required")
	}
	if cfg.Summarizer == nil {
		cfg.Summarizer = embedding.NoopSummarizer{}
	}
	if cfg.WatchDepth < 1 {
		cfg.WatchDepth = 3
	}

	return &Indexer{
		store:      cfg.Store,
		summarizer: cfg.Summarizer,
		agentDir:   cfg.AgentDir,
		watchDepth: cfg.WatchDepth,
		logger:     cfg.Logger,
		indexed:    make(map[string]bool),
	}, nil
}

// projectMetadata is the agent's per-project metadata file
type projectMetadata struct {
	Path string `json:"path"`
}

// ResolveProjectDir maps a project path to the agent's transcript
// directory for it. Metadata records win (exact match, then containment
// either way); otherwise the agent's path-hash naming convention is
// assumed.
func (ix *Indexer) ResolveProjectDir(projectPath string) (string, error) {
	dirs, err := os.ReadDir(ix.agentDir)
	if err != nil {
		return "", fmt.Errorf("failed to read agent directory: %w", err)
	}

	clean := filepath.Clean(projectPath)

	var containment string
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		candidate := filepath.Join(ix.agentDir, d.Name())

		data, err := os.ReadFile(filepath.Join(candidate, "metadata.json"))
		if err != nil {
			continue
		}
		var meta projectMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		metaPath := filepath.Clean(meta.Path)
		if metaPath == clean {
			return candidate, nil
		}
		if containment == "" && (strings.HasPrefix(clean, metaPath+string(filepath.Separator)) ||
			strings.HasPrefix(metaPath, clean+string(filepath.Separator))) {
			containment = candidate
		}
	}
	if containment != "" {
		return containment, nil
	}

	hashed := filepath.Join(ix.agentDir, HashProjectPath(clean))
	if _, err := os.Stat(hashed); err != nil {
		return "", fmt.Errorf("no transcript directory for %s: %w", projectPath, err)
	}
	return hashed, nil
}

// IndexProject enumerates the project's transcripts and stores a
// conversation entry for each one not yet indexed in this process,
// or for all of them when force is set. Per-file failures are logged
// and skipped; the pass continues.
func (ix *Indexer) IndexProject(ctx context.Context, projectPath string, force bool) (*Result, error) {
	dir, err := ix.ResolveProjectDir(projectPath)
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate transcripts: %w", err)
	}

	result := &Result{ProjectPath: projectPath}
	for _, file := range files {
		ix.mu.Lock()
		seen := ix.indexed[file]
		ix.mu.Unlock()

		if seen && !force {
			result.Skipped++
			continue
		}

		if err := ix.indexFile(ctx, file, projectPath); err != nil {
			ix.logger.Warn().Err(err).Str("file", filepath.Base(file)).Msg("Failed to index transcript")
			result.Failed++
			continue
		}
		result.Indexed++
	}

	ix.logger.Info().
		Str("project", projectPath).
		Int("indexed", result.Indexed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Index pass completed")

	return result, nil
}

// indexFile parses, summarizes and stores one transcript
func (ix *Indexer) indexFile(ctx context.Context, path, projectPath string) error {
	transcript, err := ParseTranscript(path)
	if err != nil {
		return err
	}

	raw := transcript.Render()

	// Summarization failure degrades to truncated raw text inside the
	// summarizer; it never aborts the pass.
	summary := ix.summarizer.Summarize(ctx, raw)

	content := summary + "\n\n" + truncateText(raw, maxRawTranscript)

	id := transcript.SessionID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	_, err = ix.store.Add(ctx, store.Entry{
		ID:          id,
		Type:        store.TypeConversation,
		Title:       transcriptTitle(transcript, path),
		Content:     content,
		ProjectPath: projectPath,
	})
	if err != nil {
		return fmt.Errorf("failed to store conversation: %w", err)
	}

	ix.mu.Lock()
	ix.indexed[path] = true
	ix.mu.Unlock()

	return nil
}

// transcriptTitle derives a title from the first user message
func transcriptTitle(t *Transcript, path string) string {
	for _, m := range t.Messages {
		if m.Role != "user" {
			continue
		}
		title := strings.TrimSpace(m.Content)
		if title == "" {
			continue
		}
		if idx := strings.IndexByte(title, '\n'); idx > 0 {
			title = title[:idx]
		}
		return truncateText(title, maxTitleLen)
	}
	return filepath.Base(path)
}

// truncateText shortens s to at most limit bytes without splitting a rune
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
