package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/milhouse/contextmem/pkg/embedding"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

const (
	// sentinelID seeds a fresh index and pins its vector dimension.
	// The sentinel never appears in results surfaced to callers.
	sentinelID = "system-init"

	// previewLen truncates content on search output only
	previewLen = 500

	// searchOverfetch compensates for post-hoc type filtering; the
	// vector table has no per-type partitioning
	searchOverfetch = 2
)

// Store is the durable, typed, vector-searchable record store
type Store struct {
	db          *sql.DB
	dbPath      string
	provider    embedding.Provider
	logger      zerolog.Logger
	mu          sync.RWMutex
	initialized bool
}

// Config holds store configuration
type Config struct {
	DBPath   string
	Provider embedding.Provider
	Logger   zerolog.Logger
}

// New creates a store. Initialize must be called before any other
// operation.
func New(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}

	return &Store{
		dbPath:   cfg.DBPath,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}, nil
}

// Initialize opens the on-disk index, creating it with the seed system
// record when absent. A dimension mismatch against an existing index is
// an error; there is no migration path.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency within the process
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s.db = db
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.initialized = true

	if err := s.seedSentinel(ctx); err != nil {
		s.initialized = false
		db.Close()
		s.db = nil
		return fmt.Errorf("failed to seed index: %w", err)
	}

	s.logger.Info().Str("path", s.dbPath).Int("dimension", s.provider.Dimension()).
		Msg("Context store initialized")
	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	// id carries no unique constraint: normal adds generate UUIDs, but
	// reindexing a transcript reuses its id and the documented behavior
	// is a duplicate entry, not a conflict. Delete removes by predicate.
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			project_path TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_id ON entries(id);
		CREATE INDEX IF NOT EXISTS idx_entries_type ON entries(type);
		CREATE INDEX IF NOT EXISTS idx_entries_project ON entries(project_path);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	dimension := s.provider.Dimension()

	var stored string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'dimension'").Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO meta (key, value) VALUES ('dimension', ?)",
			strconv.Itoa(dimension),
		); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if stored != strconv.Itoa(dimension) {
			return fmt.Errorf("index dimension is %s, provider wants %d: a fresh index is required", stored, dimension)
		}
	}

	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entry_vectors USING vec0(
			entry_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimension)
	if _, err := s.db.ExecContext(ctx, vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector table: %w", err)
	}

	return nil
}

// seedSentinel inserts the schema-fixing system record into an empty index
func (s *Store) seedSentinel(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	sentinel := Entry{
		ID:        sentinelID,
		Type:      TypeDocument,
		Title:     "system",
		Content:   "context memory index seed record",
		Timestamp: time.Now(),
	}
	return s.insertEntry(ctx, sentinel)
}

func (s *Store) ensureInitialized() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// Add computes an embedding for the entry and stores it as one
// immutable record. A missing id is generated; a missing timestamp is
// set to now.
func (s *Store) Add(ctx context.Context, entry Entry) (Entry, error) {
	if err := s.ensureInitialized(); err != nil {
		return Entry{}, err
	}

	if err := entry.normalize(); err != nil {
		return Entry{}, err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := s.insertEntry(ctx, entry); err != nil {
		return Entry{}, err
	}

	s.logger.Debug().Str("id", entry.ID).Str("type", string(entry.Type)).Msg("Entry stored")
	return entry, nil
}

// insertEntry writes the row and its vector
func (s *Store) insertEntry(ctx context.Context, entry Entry) error {
	vec, err := s.provider.Embed(ctx, entry.Title+"\n"+entry.Content)
	if err != nil {
		return fmt.Errorf("failed to embed entry: %w", err)
	}

	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, type, title, content, project_path, file_path, tags, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Type), entry.Title, entry.Content,
		entry.ProjectPath, entry.FilePath, string(tagsJSON),
		string(entry.Status), string(entry.Priority), entry.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return s.insertVector(ctx, entry.ID, vec)
}

func (s *Store) insertVector(ctx context.Context, id string, vec []float32) error {
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO entry_vectors (entry_id, embedding) VALUES (?, ?)",
		id, string(vecJSON),
	); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Search embeds the query, overfetches nearest neighbors and applies
// the optional type filter in memory before truncating to limit.
func (s *Store) Search(ctx context.Context, query string, limit int, typeFilter EntryType) ([]SearchResult, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}
	if typeFilter != "" && !ValidType(typeFilter) {
		return nil, fmt.Errorf("unknown entry type: %q", typeFilter)
	}

	queryVec, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	vecJSON, err := json.Marshal(queryVec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			entry_id,
			vec_distance_cosine(embedding, ?) as distance
		FROM entry_vectors
		ORDER BY distance ASC
		LIMIT ?`,
		string(vecJSON), limit*searchOverfetch,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector table: %w", err)
	}
	defer rows.Close()

	type hit struct {
		id       string
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, h := range hits {
		if h.id == sentinelID {
			continue
		}

		var (
			entryType string
			title     string
			content   string
			createdAt int64
		)
		err := s.db.QueryRowContext(ctx,
			"SELECT type, title, content, created_at FROM entries WHERE id = ?", h.id,
		).Scan(&entryType, &title, &content, &createdAt)
		if err == sql.ErrNoRows {
			// Vector without a row: deletion interleaved with this search
			continue
		}
		if err != nil {
			return nil, err
		}

		if typeFilter != "" && EntryType(entryType) != typeFilter {
			continue
		}

		results = append(results, SearchResult{
			ID:        h.id,
			Type:      EntryType(entryType),
			Title:     title,
			Preview:   truncate(content, previewLen),
			Score:     1.0 - h.distance,
			Timestamp: time.UnixMilli(createdAt),
		})
		if len(results) == limit {
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// GetEntry fetches the full record by id
func (s *Store) GetEntry(ctx context.Context, id string) (Entry, error) {
	if err := s.ensureInitialized(); err != nil {
		return Entry{}, err
	}
	if id == sentinelID {
		return Entry{}, ErrNotFound
	}
	return s.fetchEntry(ctx, id)
}

func (s *Store) fetchEntry(ctx context.Context, id string) (Entry, error) {
	var (
		entry    Entry
		rawType  string
		tagsJSON string
		status   string
		priority string
		created  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, title, content, project_path, file_path, tags, status, priority, created_at
		FROM entries WHERE id = ? ORDER BY created_at DESC LIMIT 1`, id,
	).Scan(&entry.ID, &rawType, &entry.Title, &entry.Content,
		&entry.ProjectPath, &entry.FilePath, &tagsJSON, &status, &priority, &created)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}

	entry.Type = EntryType(rawType)
	entry.Status = TaskStatus(status)
	entry.Priority = Priority(priority)
	entry.Timestamp = time.UnixMilli(created)
	if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	return entry, nil
}

// UpdateTaskStatus mutates a task's status and refreshes its timestamp.
// The index has no upsert, so the record is deleted and reinserted; the
// task is transiently absent from results between the two steps.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status TaskStatus) (Entry, error) {
	if err := s.ensureInitialized(); err != nil {
		return Entry{}, err
	}
	if !ValidStatus(status) {
		return Entry{}, fmt.Errorf("unknown task status: %q", status)
	}

	entry, err := s.fetchEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if entry.Type != TypeTask {
		return Entry{}, ErrNotFound
	}

	entry.Status = status
	entry.Timestamp = time.Now()

	if err := s.deleteByID(ctx, id); err != nil {
		return Entry{}, err
	}
	if err := s.insertEntry(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("failed to reinsert task: %w", err)
	}

	s.logger.Debug().Str("id", id).Str("status", string(status)).Msg("Task status updated")
	return entry, nil
}

// Delete removes an entry by id. Deleting an unknown id returns
// ErrNotFound rather than succeeding silently.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	if id == sentinelID {
		return ErrNotFound
	}

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM entries WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	return s.deleteByID(ctx, id)
}

func (s *Store) deleteByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entry_vectors WHERE entry_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

// List returns entries of one type, newest first, narrowed by filters
func (s *Store) List(ctx context.Context, entryType EntryType, filters ListFilters) ([]Entry, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}
	if !ValidType(entryType) {
		return nil, fmt.Errorf("unknown entry type: %q", entryType)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, content, project_path, file_path, tags, status, priority, created_at
		FROM entries WHERE type = ? AND id != ? ORDER BY created_at DESC`,
		string(entryType), sentinelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			entry    Entry
			rawType  string
			tagsJSON string
			status   string
			priority string
			created  int64
		)
		if err := rows.Scan(&entry.ID, &rawType, &entry.Title, &entry.Content,
			&entry.ProjectPath, &entry.FilePath, &tagsJSON, &status, &priority, &created); err != nil {
			return nil, err
		}

		entry.Type = EntryType(rawType)
		entry.Status = TaskStatus(status)
		entry.Priority = Priority(priority)
		entry.Timestamp = time.UnixMilli(created)
		if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}

		if !matchFilters(entry, filters) {
			continue
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func matchFilters(entry Entry, filters ListFilters) bool {
	if filters.ProjectPath != "" && entry.ProjectPath != filters.ProjectPath {
		return false
	}
	if filters.Status != "" && entry.Status != filters.Status {
		return false
	}
	for _, want := range filters.Tags {
		found := false
		for _, tag := range entry.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ProjectSummary reports per-type counts and the most recent
// conversations and decisions for one project
func (s *Store) ProjectSummary(ctx context.Context, projectPath string) (*ProjectSummary, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}

	summary := &ProjectSummary{
		ProjectPath: projectPath,
		Counts:      make(map[EntryType]int),
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT type, COUNT(*) FROM entries WHERE project_path = ? AND id != ? GROUP BY type",
		projectPath, sentinelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entryType string
		var count int
		if err := rows.Scan(&entryType, &count); err != nil {
			return nil, err
		}
		summary.Counts[EntryType(entryType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	summary.RecentConversations, err = s.recentRefs(ctx, projectPath, TypeConversation, 5)
	if err != nil {
		return nil, err
	}
	summary.RecentDecisions, err = s.recentRefs(ctx, projectPath, TypeDecision, 5)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func (s *Store) recentRefs(ctx context.Context, projectPath string, entryType EntryType, limit int) ([]EntryRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at FROM entries
		WHERE project_path = ? AND type = ? AND id != ?
		ORDER BY created_at DESC LIMIT ?`,
		projectPath, string(entryType), sentinelID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []EntryRef{}
	for rows.Next() {
		var ref EntryRef
		var created int64
		if err := rows.Scan(&ref.ID, &ref.Title, &created); err != nil {
			return nil, err
		}
		ref.Timestamp = time.UnixMilli(created)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Stats reports global per-type counts, the indexed project paths and
// the index's storage location
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	if err := s.ensureInitialized(); err != nil {
		return nil, err
	}

	stats := &Stats{
		Counts:       make(map[EntryType]int),
		ProjectPaths: []string{},
		Location:     s.dbPath,
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT type, COUNT(*) FROM entries WHERE id != ? GROUP BY type", sentinelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entryType string
		var count int
		if err := rows.Scan(&entryType, &count); err != nil {
			return nil, err
		}
		stats.Counts[EntryType(entryType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pathRows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT project_path FROM entries WHERE project_path != '' AND id != ? ORDER BY project_path",
		sentinelID,
	)
	if err != nil {
		return nil, err
	}
	defer pathRows.Close()

	for pathRows.Next() {
		var path string
		if err := pathRows.Scan(&path); err != nil {
			return nil, err
		}
		stats.ProjectPaths = append(stats.ProjectPaths, path)
	}

	return stats, pathRows.Err()
}

// Close closes the underlying database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	s.initialized = false
	err := s.db.Close()
	s.db = nil
	return err
}

// truncate shortens text to at most limit bytes without splitting a rune
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
