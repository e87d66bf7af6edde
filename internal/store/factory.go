package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// KeywordBackend selects the keyword store implementation.
type KeywordBackend string

const (
	// KeywordBackendSQLite uses SQLite FTS5 (default). Concurrent access
	// via WAL mode, pure Go.
	KeywordBackendSQLite KeywordBackend = "sqlite"

	// KeywordBackendBleve uses Bleve v2 (legacy). BoltDB's exclusive file
	// lock makes it single-process only.
	KeywordBackendBleve KeywordBackend = "bleve"
)

// NewKeywordStore creates a KeywordStore in dataDir using the given
// backend ("sqlite" by default). An empty dataDir yields an in-memory
// store for testing.
func NewKeywordStore(dataDir string, backend string) (KeywordStore, error) {
	switch KeywordBackend(backend) {
	case KeywordBackendSQLite, "":
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "knowledge.db")
		}
		return NewSQLiteKeywordStore(path)

	case KeywordBackendBleve:
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "keyword.bleve")
		}
		return NewBleveKeywordStore(path)

	default:
		return nil, fmt.Errorf("unknown keyword backend: %s (valid options: sqlite, bleve)", backend)
	}
}

// DetectKeywordBackend reports which backend an existing data directory
// uses, or an empty string when no keyword store exists yet. Lets a
// config switch avoid silently abandoning an already-built index.
func DetectKeywordBackend(dataDir string) KeywordBackend {
	if fileExists(filepath.Join(dataDir, "knowledge.db")) {
		return KeywordBackendSQLite
	}
	if dirExists(filepath.Join(dataDir, "keyword.bleve")) {
		return KeywordBackendBleve
	}
	return ""
}

// VectorStorePath returns the vector snapshot location inside dataDir.
func VectorStorePath(dataDir string) string {
	return filepath.Join(dataDir, "vectors.hnsw")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
