package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milhouse/contextmem/pkg/embedding"
	"github.com/milhouse/contextmem/pkg/indexer"
	"github.com/milhouse/contextmem/pkg/store"
)

const testDimension = 64

func createTestRegistry(t *testing.T) *Registry {
	t.Helper()

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	st, err := store.New(store.Config{
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		Provider: embedding.NewHashProvider(testDimension),
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, st.Initialize(context.Background()))
	t.Cleanup(func() { st.Close() })

	ix, err := indexer.New(indexer.Config{
		Store:    st,
		AgentDir: t.TempDir(),
		Logger:   logger,
	})
	require.NoError(t, err)
	t.Cleanup(ix.StopWatching)

	svc, err := NewService(st, ix, logger)
	require.NoError(t, err)

	reg := NewRegistry(logger)
	require.NoError(t, svc.RegisterAll(reg))
	return reg
}

func exec(t *testing.T, reg *Registry, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()

	res := reg.Execute(context.Background(), name, args)
	require.True(t, res.Success, "operation %s failed: %s", name, res.Error)
	out, ok := res.Output.(map[string]interface{})
	require.True(t, ok, "operation %s returned %T", name, res.Output)
	return out
}

func TestNewService_MissingDependencies(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	svc, err := NewService(nil, nil, logger)
	assert.Error(t, err)
	assert.Nil(t, svc)
}

func TestRegisterAll_OperationSurface(t *testing.T) {
	reg := createTestRegistry(t)

	expected := []string{
		"search_context", "get_project_summary", "store_decision",
		"get_related_conversations", "index_project", "start_watching",
		"stop_watching", "get_memory_status", "list_tasks", "create_task",
		"update_task_status", "delete_task", "list_documents",
		"store_document", "get_document", "delete_document",
		"store_code_snippet",
	}
	names := reg.List()
	assert.Len(t, names, len(expected))
	for _, name := range expected {
		assert.NotNil(t, reg.Get(name), "missing operation %s", name)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	reg := NewRegistry(logger)

	def := Definition{
		Name:    "noop",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil },
	}
	require.NoError(t, reg.Register(def))
	assert.Error(t, reg.Register(def))
}

func TestRegister_NoHandler(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	reg := NewRegistry(logger)

	assert.Error(t, reg.Register(Definition{Name: "broken"}))
	assert.Error(t, reg.Register(Definition{
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return nil, nil },
	}))
}

func TestExecute_UnknownOperation(t *testing.T) {
	reg := createTestRegistry(t)

	res := reg.Execute(context.Background(), "no_such_op", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown operation")
}

func TestExecute_ValidationFailure(t *testing.T) {
	reg := createTestRegistry(t)

	res := reg.Execute(context.Background(), "search_context", map[string]interface{}{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid arguments")

	res = reg.Execute(context.Background(), "search_context", map[string]interface{}{
		"query":      "anything",
		"unexpected": true,
	})
	assert.False(t, res.Success)
}

func TestExecute_HandlerErrorIsFlagged(t *testing.T) {
	reg := createTestRegistry(t)

	res := reg.Execute(context.Background(), "update_task_status", map[string]interface{}{
		"taskId": "missing-task",
		"status": "completed",
	})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestTaskLifecycle(t *testing.T) {
	reg := createTestRegistry(t)

	created := exec(t, reg, "create_task", map[string]interface{}{
		"title":       "Fix login redirect",
		"content":     "Redirect loops when the session cookie expires mid-flight",
		"priority":    "high",
		"projectPath": "/home/dev/webapp",
	})
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	pending := exec(t, reg, "list_tasks", map[string]interface{}{"status": "pending"})
	tasks, ok := pending["tasks"].([]store.Entry)
	require.True(t, ok)
	require.Len(t, tasks, 1)
	assert.Equal(t, id, tasks[0].ID)
	assert.Equal(t, store.PriorityHigh, tasks[0].Priority)

	updated := exec(t, reg, "update_task_status", map[string]interface{}{
		"taskId": id,
		"status": "completed",
	})
	assert.Equal(t, store.StatusCompleted, updated["status"])

	completed := exec(t, reg, "list_tasks", map[string]interface{}{"status": "completed"})
	assert.Equal(t, 1, completed["count"])

	exec(t, reg, "delete_task", map[string]interface{}{"taskId": id})
	after := exec(t, reg, "list_tasks", map[string]interface{}{})
	assert.Equal(t, 0, after["count"])
}

func TestCreateTask_DistinctIDs(t *testing.T) {
	reg := createTestRegistry(t)

	first := exec(t, reg, "create_task", map[string]interface{}{
		"title": "Same title", "content": "Same content",
	})
	second := exec(t, reg, "create_task", map[string]interface{}{
		"title": "Same title", "content": "Same content",
	})
	assert.NotEqual(t, first["id"], second["id"])
}

func TestCreateTask_InvalidPriority(t *testing.T) {
	reg := createTestRegistry(t)

	res := reg.Execute(context.Background(), "create_task", map[string]interface{}{
		"title": "t", "content": "c", "priority": "urgent",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown task priority")
}

func TestDocumentLifecycle(t *testing.T) {
	reg := createTestRegistry(t)

	stored := exec(t, reg, "store_document", map[string]interface{}{
		"title":   "API notes",
		"content": "Use POST /v1/x",
		"tags":    []interface{}{"api"},
	})
	id, _ := stored["id"].(string)
	require.NotEmpty(t, id)

	got := exec(t, reg, "get_document", map[string]interface{}{"docId": id})
	require.Equal(t, true, got["found"])
	doc, ok := got["document"].(store.Entry)
	require.True(t, ok)
	assert.Equal(t, "API notes", doc.Title)
	assert.Equal(t, "Use POST /v1/x", doc.Content)
	assert.Equal(t, []string{"api"}, doc.Tags)

	listed := exec(t, reg, "list_documents", map[string]interface{}{
		"tags": []interface{}{"api"},
	})
	assert.Equal(t, 1, listed["count"])

	exec(t, reg, "delete_document", map[string]interface{}{"docId": id})
	gone := exec(t, reg, "get_document", map[string]interface{}{"docId": id})
	assert.Equal(t, false, gone["found"])
}

func TestGetDocument_WrongType(t *testing.T) {
	reg := createTestRegistry(t)

	created := exec(t, reg, "create_task", map[string]interface{}{
		"title": "Not a document", "content": "task body",
	})
	id, _ := created["id"].(string)

	got := exec(t, reg, "get_document", map[string]interface{}{"docId": id})
	assert.Equal(t, false, got["found"])
}

func TestDeleteDocument_Unknown(t *testing.T) {
	reg := createTestRegistry(t)

	res := reg.Execute(context.Background(), "delete_document", map[string]interface{}{
		"docId": "no-such-doc",
	})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestSearchContext(t *testing.T) {
	reg := createTestRegistry(t)

	exec(t, reg, "store_decision", map[string]interface{}{
		"title":       "Adopt sqlite vector index",
		"content":     "Single-file storage keeps deployment simple and queries local",
		"tags":        []interface{}{"storage"},
		"projectPath": "/home/dev/webapp",
	})

	found := exec(t, reg, "search_context", map[string]interface{}{
		"query": "sqlite vector index storage",
	})
	results, ok := found["results"].([]store.SearchResult)
	require.True(t, ok)
	require.NotEmpty(t, results)
	assert.Equal(t, store.TypeDecision, results[0].Type)

	res := reg.Execute(context.Background(), "search_context", map[string]interface{}{
		"query": "anything", "type": "recipe",
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown entry type")
}

func TestGetRelatedConversations_Empty(t *testing.T) {
	reg := createTestRegistry(t)

	out := exec(t, reg, "get_related_conversations", map[string]interface{}{
		"topic": "database migrations",
	})
	assert.Equal(t, 0, out["count"])
}

func TestStoreCodeSnippet(t *testing.T) {
	reg := createTestRegistry(t)

	stored := exec(t, reg, "store_code_snippet", map[string]interface{}{
		"title":    "Retry helper",
		"content":  "func retry(n int, fn func() error) error { ... }",
		"filePath": "/home/dev/webapp/internal/retry.go",
	})
	id, _ := stored["id"].(string)
	require.NotEmpty(t, id)

	found := exec(t, reg, "search_context", map[string]interface{}{
		"query": "retry helper",
		"type":  "code",
	})
	results, ok := found["results"].([]store.SearchResult)
	require.True(t, ok)
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].ID)
}

func TestGetMemoryStatus(t *testing.T) {
	reg := createTestRegistry(t)

	exec(t, reg, "store_document", map[string]interface{}{
		"title": "Readme", "content": "notes", "projectPath": "/home/dev/webapp",
	})

	res := reg.Execute(context.Background(), "get_memory_status", nil)
	require.True(t, res.Success, res.Error)
	stats, ok := res.Output.(*store.Stats)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Counts[store.TypeDocument])
	assert.Contains(t, stats.ProjectPaths, "/home/dev/webapp")
	assert.NotEmpty(t, stats.Location)
}

func TestProjectSummaryOperation(t *testing.T) {
	reg := createTestRegistry(t)

	exec(t, reg, "store_decision", map[string]interface{}{
		"title": "Pin Go version", "content": "CI and local builds drifted", "projectPath": "/home/dev/webapp",
	})

	res := reg.Execute(context.Background(), "get_project_summary", map[string]interface{}{
		"projectPath": "/home/dev/webapp",
	})
	require.True(t, res.Success, res.Error)
	summary, ok := res.Output.(*store.ProjectSummary)
	require.True(t, ok)
	assert.Equal(t, 1, summary.Counts[store.TypeDecision])
	require.Len(t, summary.RecentDecisions, 1)
	assert.Equal(t, "Pin Go version", summary.RecentDecisions[0].Title)
}

func TestStopWatching_NoActiveWatch(t *testing.T) {
	reg := createTestRegistry(t)

	out := exec(t, reg, "stop_watching", nil)
	assert.Equal(t, false, out["watching"])
}

func TestIndexProject_UnknownProject(t *testing.T) {
	reg := createTestRegistry(t)

	res := reg.Execute(context.Background(), "index_project", map[string]interface{}{
		"projectPath": "/nonexistent/project",
	})
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}
