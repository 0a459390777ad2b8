package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/milhouse/contextmem/pkg/indexer"
	"github.com/milhouse/contextmem/pkg/store"
)

const defaultSearchLimit = 10

// Service binds the memory operations to a concrete store and indexer.
// All dependencies are passed in explicitly; the service keeps no
// process-global state.
type Service struct {
	store   *store.Store
	indexer *indexer.Indexer
	logger  zerolog.Logger
}

// NewService creates the operation service
func NewService(st *store.Store, ix *indexer.Indexer, logger zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if ix == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	return &Service{store: st, indexer: ix, logger: logger}, nil
}

func (s *Service) searchContext(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	limit := intArg(args, "limit", defaultSearchLimit)
	typeFilter := store.EntryType(stringArg(args, "type"))
	if typeFilter != "" && !store.ValidType(typeFilter) {
		return nil, fmt.Errorf("unknown entry type: %s", typeFilter)
	}

	results, err := s.store.Search(ctx, query, limit, typeFilter)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}, nil
}

func (s *Service) getProjectSummary(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	projectPath, _ := args["projectPath"].(string)
	if projectPath == "" {
		return nil, fmt.Errorf("projectPath is required")
	}
	return s.store.ProjectSummary(ctx, projectPath)
}

func (s *Service) storeDecision(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	title, _ := args["title"].(string)
	content, _ := args["content"].(string)
	if title == "" || content == "" {
		return nil, fmt.Errorf("title and content are required")
	}

	stored, err := s.store.Add(ctx, store.Entry{
		Type:        store.TypeDecision,
		Title:       title,
		Content:     content,
		Tags:        stringsArg(args, "tags"),
		ProjectPath: stringArg(args, "projectPath"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": stored.ID, "stored": true}, nil
}

func (s *Service) getRelatedConversations(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	topic, _ := args["topic"].(string)
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	limit := intArg(args, "limit", defaultSearchLimit)

	results, err := s.store.Search(ctx, topic, limit, store.TypeConversation)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"topic":         topic,
		"count":         len(results),
		"conversations": results,
	}, nil
}

func (s *Service) indexProject(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	projectPath, _ := args["projectPath"].(string)
	if projectPath == "" {
		return nil, fmt.Errorf("projectPath is required")
	}
	force, _ := args["force"].(bool)

	return s.indexer.IndexProject(ctx, projectPath, force)
}

func (s *Service) startWatching(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	projectPath, _ := args["projectPath"].(string)
	if projectPath == "" {
		return nil, fmt.Errorf("projectPath is required")
	}
	if err := s.indexer.StartWatching(projectPath); err != nil {
		return nil, err
	}
	return map[string]interface{}{"watching": projectPath}, nil
}

func (s *Service) stopWatching(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	s.indexer.StopWatching()
	return map[string]interface{}{"watching": false}, nil
}

func (s *Service) getMemoryStatus(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return s.store.Stats(ctx)
}

func (s *Service) listTasks(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	status := store.TaskStatus(stringArg(args, "status"))
	if status != "" && !store.ValidStatus(status) {
		return nil, fmt.Errorf("unknown task status: %s", status)
	}

	tasks, err := s.store.List(ctx, store.TypeTask, store.ListFilters{
		ProjectPath: stringArg(args, "projectPath"),
		Status:      status,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": len(tasks), "tasks": tasks}, nil
}

func (s *Service) createTask(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	title, _ := args["title"].(string)
	content, _ := args["content"].(string)
	if title == "" || content == "" {
		return nil, fmt.Errorf("title and content are required")
	}
	priority := store.Priority(stringArg(args, "priority"))
	if priority != "" && !store.ValidPriority(priority) {
		return nil, fmt.Errorf("unknown task priority: %s", priority)
	}

	created, err := s.store.Add(ctx, store.Entry{
		Type:        store.TypeTask,
		Title:       title,
		Content:     content,
		Priority:    priority,
		Tags:        stringsArg(args, "tags"),
		ProjectPath: stringArg(args, "projectPath"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": created.ID, "created": true}, nil
}

func (s *Service) updateTaskStatus(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	taskID, _ := args["taskId"].(string)
	status := store.TaskStatus(stringArg(args, "status"))
	if taskID == "" || status == "" {
		return nil, fmt.Errorf("taskId and status are required")
	}

	updated, err := s.store.UpdateTaskStatus(ctx, taskID, status)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": updated.ID, "status": updated.Status}, nil
}

func (s *Service) deleteTask(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	taskID, _ := args["taskId"].(string)
	if taskID == "" {
		return nil, fmt.Errorf("taskId is required")
	}

	if err := s.store.Delete(ctx, taskID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": taskID, "deleted": true}, nil
}

func (s *Service) listDocuments(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	docs, err := s.store.List(ctx, store.TypeDocument, store.ListFilters{
		ProjectPath: stringArg(args, "projectPath"),
		Tags:        stringsArg(args, "tags"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"count": len(docs), "documents": docs}, nil
}

func (s *Service) storeDocument(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	title, _ := args["title"].(string)
	content, _ := args["content"].(string)
	if title == "" || content == "" {
		return nil, fmt.Errorf("title and content are required")
	}

	stored, err := s.store.Add(ctx, store.Entry{
		Type:        store.TypeDocument,
		Title:       title,
		Content:     content,
		Tags:        stringsArg(args, "tags"),
		ProjectPath: stringArg(args, "projectPath"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": stored.ID, "stored": true}, nil
}

func (s *Service) getDocument(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	docID, _ := args["docId"].(string)
	if docID == "" {
		return nil, fmt.Errorf("docId is required")
	}

	entry, err := s.store.GetEntry(ctx, docID)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]interface{}{"found": false}, nil
	}
	if err != nil {
		return nil, err
	}
	if entry.Type != store.TypeDocument {
		return map[string]interface{}{"found": false}, nil
	}
	return map[string]interface{}{"found": true, "document": entry}, nil
}

func (s *Service) deleteDocument(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	docID, _ := args["docId"].(string)
	if docID == "" {
		return nil, fmt.Errorf("docId is required")
	}

	if err := s.store.Delete(ctx, docID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": docID, "deleted": true}, nil
}

func (s *Service) storeCodeSnippet(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	title, _ := args["title"].(string)
	content, _ := args["content"].(string)
	if title == "" || content == "" {
		return nil, fmt.Errorf("title and content are required")
	}

	stored, err := s.store.Add(ctx, store.Entry{
		Type:        store.TypeCode,
		Title:       title,
		Content:     content,
		FilePath:    stringArg(args, "filePath"),
		Tags:        stringsArg(args, "tags"),
		ProjectPath: stringArg(args, "projectPath"),
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"id": stored.ID, "stored": true}, nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func intArg(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func stringsArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		if tags, ok := args[key].([]string); ok {
			return tags
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
