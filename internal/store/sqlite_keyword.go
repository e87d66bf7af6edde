package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

// snippetTokens is the approximate snippet length passed to FTS5 snippet().
const snippetTokens = 64

// SQLiteKeywordStore implements KeywordStore with a documents table and an
// FTS5 mirror. WAL mode allows concurrent readers while the CLI writes.
type SQLiteKeywordStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ KeywordStore = (*SQLiteKeywordStore)(nil)

// NewSQLiteKeywordStore opens (or creates) the keyword store at path.
// If path is empty, an in-memory store is created for testing.
func NewSQLiteKeywordStore(path string) (*SQLiteKeywordStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ragerrors.StorageError("failed to open database", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // 64MB cache (negative = KB)
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, ragerrors.StorageError("failed to set pragma", err)
		}
	}

	s := &SQLiteKeywordStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, ragerrors.StorageError("failed to initialize schema", err)
	}

	return s, nil
}

// initSchema creates the documents table and its FTS5 mirror.
func (s *SQLiteKeywordStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		framework TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	-- FTS5 mirror of (title, content), rowid matched to documents.id so
	-- snippet() and bm25() resolve back to the document row.
	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		title,
		content,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Upsert inserts or replaces the document keyed by URL. INSERT OR REPLACE
// assigns a fresh rowid on replacement, so callers that track vectors by
// document ID must purge the old ID's vectors first.
func (s *SQLiteKeywordStore) Upsert(ctx context.Context, doc *Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	if doc.URL == "" {
		return 0, ragerrors.New(ragerrors.ErrCodeInvalidURL, "document url is empty", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ragerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Drop the FTS row for any previous version of this URL. The FTS5
	// mirror has no upsert, so it is always delete-then-insert.
	var oldID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE url = ?`, doc.URL).Scan(&oldID)
	switch {
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE rowid = ?`, oldID); err != nil {
			return 0, ragerrors.StorageError("failed to clear stale search row", err)
		}
	case err != sql.ErrNoRows:
		return 0, ragerrors.StorageError("failed to look up url", err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (url, title, content, framework, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		doc.URL, doc.Title, doc.Content, doc.Framework, createdAt.Format(time.RFC3339))
	if err != nil {
		return 0, ragerrors.New(ragerrors.ErrCodeConstraint, "failed to upsert document", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, ragerrors.StorageError("failed to read inserted id", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_fts (rowid, title, content) VALUES (?, ?, ?)`,
		id, doc.Title, doc.Content); err != nil {
		return 0, ragerrors.StorageError("failed to index document text", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, ragerrors.StorageError("failed to commit upsert", err)
	}

	doc.ID = id
	doc.CreatedAt = createdAt
	return id, nil
}

// Get returns the document by ID.
func (s *SQLiteKeywordStore) Get(ctx context.Context, id int64) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, content, framework, created_at FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ragerrors.NotFound(fmt.Sprintf("id %d", id))
	}
	if err != nil {
		return nil, ragerrors.StorageError("failed to load document", err)
	}
	return doc, nil
}

// GetByURL returns the document with the given URL.
func (s *SQLiteKeywordStore) GetByURL(ctx context.Context, url string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, content, framework, created_at FROM documents WHERE url = ?`, url)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, ragerrors.NotFound(url)
	}
	if err != nil {
		return nil, ragerrors.StorageError("failed to load document", err)
	}
	return doc, nil
}

// Delete removes the document by ID and reports whether a row existed.
func (s *SQLiteKeywordStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, ragerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE rowid = ?`, id); err != nil {
		return false, ragerrors.StorageError("failed to delete search row", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, ragerrors.StorageError("failed to delete document", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, ragerrors.StorageError("failed to read affected rows", err)
	}

	if err := tx.Commit(); err != nil {
		return false, ragerrors.StorageError("failed to commit delete", err)
	}

	return affected > 0, nil
}

// Search returns up to limit documents matching query, best-first by
// bm25(). When FTS5 rejects the query it falls back to a LIKE scan so
// punctuation-heavy queries still return something.
func (s *SQLiteKeywordStore) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*KeywordResult{}, nil
	}

	escaped := escapeFTSQuery(query)
	if escaped == "" {
		return []*KeywordResult{}, nil
	}

	// FTS5 bm25() returns negative values where lower = better match;
	// negate so higher is better for callers.
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid,
		       -bm25(documents_fts) AS score,
		       snippet(documents_fts, 1, '<b>', '</b>', '...', ?) AS snip
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY bm25(documents_fts)
		LIMIT ?`,
		snippetTokens, escaped, limit)
	if err != nil {
		if isFTSSyntaxError(err) {
			return s.searchLike(ctx, query, limit)
		}
		return nil, ragerrors.StorageError("keyword search failed", err)
	}
	defer rows.Close()

	var results []*KeywordResult
	for rows.Next() {
		r := &KeywordResult{}
		if err := rows.Scan(&r.DocID, &r.Score, &r.Snippet); err != nil {
			return nil, ragerrors.StorageError("failed to scan search result", err)
		}
		results = append(results, r)
	}
	if results == nil {
		results = []*KeywordResult{}
	}
	return results, rows.Err()
}

// searchLike is the fallback scan used when the FTS5 query is unparseable.
func (s *SQLiteKeywordStore) searchLike(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, substr(content, 1, 200)
		FROM documents
		WHERE content LIKE ? OR title LIKE ?
		ORDER BY id
		LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, ragerrors.StorageError("fallback search failed", err)
	}
	defer rows.Close()

	results := []*KeywordResult{}
	for rows.Next() {
		r := &KeywordResult{Score: 1.0}
		if err := rows.Scan(&r.DocID, &r.Snippet); err != nil {
			return nil, ragerrors.StorageError("failed to scan fallback result", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// List returns all documents ordered by ID, content omitted to keep the
// listing cheap for large knowledge bases.
func (s *SQLiteKeywordStore) List(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, title, framework, created_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, ragerrors.StorageError("failed to list documents", err)
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		doc := &Document{}
		var createdAt string
		if err := rows.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Framework, &createdAt); err != nil {
			return nil, ragerrors.StorageError("failed to scan document", err)
		}
		doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of indexed documents.
func (s *SQLiteKeywordStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, ragerrors.StorageError("failed to count documents", err)
	}
	return count, nil
}

// Stats returns document count and per-framework breakdown.
func (s *SQLiteKeywordStore) Stats(ctx context.Context) (*KeywordStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	stats := &KeywordStats{Frameworks: map[string]int{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.DocumentCount); err != nil {
		return nil, ragerrors.StorageError("failed to count documents", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT framework, COUNT(*) FROM documents WHERE framework != '' GROUP BY framework`)
	if err != nil {
		return nil, ragerrors.StorageError("failed to read framework stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var fw string
		var n int
		if err := rows.Scan(&fw, &n); err != nil {
			return nil, ragerrors.StorageError("failed to scan framework stats", err)
		}
		stats.Frameworks[fw] = n
	}
	return stats, rows.Err()
}

// RebuildIndex regenerates the FTS5 mirror from the documents table.
// Recovers from a mirror that drifted out of sync (e.g. interrupted writes).
func (s *SQLiteKeywordStore) RebuildIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerrors.StorageError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents_fts`); err != nil {
		return ragerrors.StorageError("failed to clear search index", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents_fts (rowid, title, content)
		 SELECT id, title, content FROM documents`); err != nil {
		return ragerrors.StorageError("failed to rebuild search index", err)
	}

	if err := tx.Commit(); err != nil {
		return ragerrors.StorageError("failed to commit rebuild", err)
	}

	slog.Info("keyword_index_rebuilt", slog.String("path", s.path))
	return nil
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteKeywordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	doc := &Document{}
	var createdAt string
	if err := row.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Content, &doc.Framework, &createdAt); err != nil {
		return nil, err
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return doc, nil
}

// escapeFTSQuery turns free-form user input into a safe FTS5 query: each
// term is stripped to alphanumerics, '_' and '-', then double-quoted so
// FTS5 operators in the input cannot change the query semantics.
func escapeFTSQuery(query string) string {
	var terms []string
	for _, field := range strings.Fields(query) {
		var b strings.Builder
		for _, r := range field {
			if isFTSTermRune(r) {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			terms = append(terms, `"`+b.String()+`"`)
		}
	}
	return strings.Join(terms, " ")
}

func isFTSTermRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-':
		return true
	case r > 127: // keep non-ASCII letters for unicode61 tokenization
		return true
	}
	return false
}

// isFTSSyntaxError reports whether err is FTS5 rejecting the MATCH query
// rather than a real storage failure.
func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5") || strings.Contains(msg, "syntax error")
}
