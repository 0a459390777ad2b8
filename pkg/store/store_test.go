package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/milhouse/contextmem/pkg/embedding"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDimension = 128

func createTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	s, err := New(Config{
		DBPath:   dbPath,
		Provider: embedding.NewHashProvider(testDimension),
		Logger:   logger,
	})
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_InvalidConfig(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	tests := []struct {
		name   string
		config Config
	}{
		{
			name:   "empty db path",
			config: Config{Provider: embedding.NewHashProvider(testDimension), Logger: logger},
		},
		{
			name:   "nil provider",
			config: Config{DBPath: "/tmp/test.db", Logger: logger},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.config)
			assert.Error(t, err)
			assert.Nil(t, s)
		})
	}
}

func TestStore_NotInitialized(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(Config{
		DBPath:   dbPath,
		Provider: embedding.NewHashProvider(testDimension),
		Logger:   zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = s.Add(ctx, Entry{Type: TypeDecision, Title: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = s.Search(ctx, "x", 5, "")
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = s.Delete(ctx, "some-id")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestAdd_GeneratesID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.Add(ctx, Entry{Type: TypeDecision, Title: "Use zerolog", Content: "structured logging"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Timestamp.IsZero())

	second, err := s.Add(ctx, Entry{Type: TypeDecision, Title: "Use zerolog", Content: "structured logging"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "rapid adds must never collide on id")
}

func TestAdd_TaskDefaults(t *testing.T) {
	s := createTestStore(t)

	task, err := s.Add(context.Background(), Entry{Type: TypeTask, Title: "Fix watcher", Content: "stop leaks"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, PriorityMedium, task.Priority)
}

func TestAdd_TaskFieldsClearedOnNonTask(t *testing.T) {
	s := createTestStore(t)

	doc, err := s.Add(context.Background(), Entry{
		Type:    TypeDocument,
		Title:   "Notes",
		Content: "...",
		Status:  StatusPending,
	})
	require.NoError(t, err)
	assert.Empty(t, doc.Status)
	assert.Empty(t, doc.Priority)
}

func TestAdd_UnknownType(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Add(context.Background(), Entry{Type: "banana", Title: "x", Content: "y"})
	assert.Error(t, err)
}

func TestSearch_SelfRetrieval(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stored, err := s.Add(ctx, Entry{
		Type:    TypeDecision,
		Title:   "Adopt incremental transcript indexing",
		Content: "Watch the transcript directory and reindex changed files only.",
	})
	require.NoError(t, err)

	_, err = s.Add(ctx, Entry{
		Type:    TypeDocument,
		Title:   "Completely unrelated grocery list",
		Content: "apples oranges flour",
	})
	require.NoError(t, err)

	results, err := s.Search(ctx, stored.Title, 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, stored.ID, results[0].ID)
	assert.Greater(t, results[0].Score, 0.5, "self-retrieval score must clear the threshold")
}

func TestSearch_TypeFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, Entry{Type: TypeDecision, Title: "indexing strategy", Content: "incremental"})
	require.NoError(t, err)
	_, err = s.Add(ctx, Entry{Type: TypeDocument, Title: "indexing strategy", Content: "incremental"})
	require.NoError(t, err)

	results, err := s.Search(ctx, "indexing strategy", 10, TypeDecision)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, TypeDecision, r.Type)
	}
}

func TestSearch_ExcludesSentinel(t *testing.T) {
	s := createTestStore(t)

	// Fresh store holds only the seed record; nothing may surface
	results, err := s.Search(context.Background(), "system", 10, "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_PreviewTruncated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}

	stored, err := s.Add(ctx, Entry{Type: TypeDocument, Title: "long document", Content: string(long)})
	require.NoError(t, err)

	results, err := s.Search(ctx, "long document", 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Preview, 500)

	// The stored record keeps the full content
	full, err := s.GetEntry(ctx, stored.ID)
	require.NoError(t, err)
	assert.Len(t, full.Content, 2000)
}

func TestSearch_PreviewRuneBoundary(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Three-byte runes do not divide 500 evenly; the preview cut must
	// land on a rune boundary and stay valid UTF-8
	content := strings.Repeat("日本語表記 ", 60)
	_, err := s.Add(ctx, Entry{Type: TypeDocument, Title: "multibyte document", Content: content})
	require.NoError(t, err)

	results, err := s.Search(ctx, "multibyte document", 1, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, utf8.ValidString(results[0].Preview))
	assert.LessOrEqual(t, len(results[0].Preview), 500)
}

func TestSearch_OrderedByScore(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, title := range []string{
		"sqlite vector extension notes",
		"watching transcript files",
		"embedding fallback strategy",
	} {
		_, err := s.Add(ctx, Entry{Type: TypeDocument, Title: title, Content: title})
		require.NoError(t, err)
	}

	results, err := s.Search(ctx, "embedding fallback strategy", 3, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	task, err := s.Add(ctx, Entry{Type: TypeTask, Title: "Ship the indexer", Content: "..."})
	require.NoError(t, err)

	before := task.Timestamp
	time.Sleep(5 * time.Millisecond)

	updated, err := s.UpdateTaskStatus(ctx, task.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
	assert.True(t, updated.Timestamp.After(before), "status change refreshes the timestamp")

	tasks, err := s.List(ctx, TypeTask, ListFilters{Status: StatusCompleted})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
}

func TestUpdateTaskStatus_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateTaskStatus(ctx, "missing-id", StatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)

	// A non-task entry is not a task target
	doc, err := s.Add(ctx, Entry{Type: TypeDocument, Title: "doc", Content: "..."})
	require.NoError(t, err)

	_, err = s.UpdateTaskStatus(ctx, doc.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskStatus_InvalidStatus(t *testing.T) {
	s := createTestStore(t)

	_, err := s.UpdateTaskStatus(context.Background(), "any", "done")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	doc, err := s.Add(ctx, Entry{Type: TypeDocument, Title: "ephemeral", Content: "..."})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, doc.ID))

	_, err = s.GetEntry(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_UnknownID(t *testing.T) {
	s := createTestStore(t)

	// Deleting a nonexistent id is an error, not a silent no-op
	err := s.Delete(context.Background(), "never-existed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_SentinelProtected(t *testing.T) {
	s := createTestStore(t)

	err := s.Delete(context.Background(), "system-init")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, Entry{
		Type: TypeTask, Title: "task a", Content: "...",
		ProjectPath: "/work/alpha",
	})
	require.NoError(t, err)

	taskB, err := s.Add(ctx, Entry{
		Type: TypeTask, Title: "task b", Content: "...",
		ProjectPath: "/work/beta",
		Tags:        []string{"infra", "urgent"},
	})
	require.NoError(t, err)

	t.Run("by project", func(t *testing.T) {
		tasks, err := s.List(ctx, TypeTask, ListFilters{ProjectPath: "/work/beta"})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, taskB.ID, tasks[0].ID)
	})

	t.Run("by status", func(t *testing.T) {
		tasks, err := s.List(ctx, TypeTask, ListFilters{Status: StatusPending})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("by tags", func(t *testing.T) {
		tasks, err := s.List(ctx, TypeTask, ListFilters{Tags: []string{"infra"}})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, taskB.ID, tasks[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		tasks, err := s.List(ctx, TypeTask, ListFilters{Tags: []string{"missing-tag"}})
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}

func TestList_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	_, err := s.Add(ctx, Entry{Type: TypeDocument, Title: "old", Content: "...", Timestamp: old})
	require.NoError(t, err)
	_, err = s.Add(ctx, Entry{Type: TypeDocument, Title: "new", Content: "..."})
	require.NoError(t, err)

	docs, err := s.List(ctx, TypeDocument, ListFilters{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].Title)
	assert.Equal(t, "old", docs[1].Title)
}

func TestProjectSummary(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	project := "/work/gamma"
	for i := 0; i < 7; i++ {
		_, err := s.Add(ctx, Entry{
			Type: TypeConversation, Title: "conversation", Content: "...",
			ProjectPath: project,
			Timestamp:   time.Now().Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := s.Add(ctx, Entry{Type: TypeDecision, Title: "decision", Content: "...", ProjectPath: project})
	require.NoError(t, err)
	_, err = s.Add(ctx, Entry{Type: TypeDecision, Title: "other project", Content: "...", ProjectPath: "/work/other"})
	require.NoError(t, err)

	summary, err := s.ProjectSummary(ctx, project)
	require.NoError(t, err)

	assert.Equal(t, 7, summary.Counts[TypeConversation])
	assert.Equal(t, 1, summary.Counts[TypeDecision])
	assert.Len(t, summary.RecentConversations, 5, "capped at the 5 most recent")
	assert.Len(t, summary.RecentDecisions, 1)
}

func TestStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, Entry{Type: TypeTask, Title: "t", Content: "...", ProjectPath: "/work/alpha"})
	require.NoError(t, err)
	_, err = s.Add(ctx, Entry{Type: TypeDocument, Title: "d", Content: "...", ProjectPath: "/work/beta"})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Counts[TypeTask])
	// The seed record is a document but must not be counted
	assert.Equal(t, 1, stats.Counts[TypeDocument])
	assert.Equal(t, []string{"/work/alpha", "/work/beta"}, stats.ProjectPaths)
	assert.NotEmpty(t, stats.Location)
}

func TestInitialize_DimensionMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	ctx := context.Background()

	first, err := New(Config{DBPath: dbPath, Provider: embedding.NewHashProvider(64), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, first.Initialize(ctx))
	require.NoError(t, first.Close())

	second, err := New(Config{DBPath: dbPath, Provider: embedding.NewHashProvider(128), Logger: logger})
	require.NoError(t, err)
	err = second.Initialize(ctx)
	assert.Error(t, err, "changing the vector dimension requires a fresh index")
}

func TestInitialize_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	ctx := context.Background()

	first, err := New(Config{DBPath: dbPath, Provider: embedding.NewHashProvider(64), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, first.Initialize(ctx))

	stored, err := first.Add(ctx, Entry{Type: TypeDecision, Title: "persisted", Content: "..."})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(Config{DBPath: dbPath, Provider: embedding.NewHashProvider(64), Logger: logger})
	require.NoError(t, err)
	require.NoError(t, second.Initialize(ctx))
	defer second.Close()

	entry, err := second.GetEntry(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", entry.Title)
}
