// Package collect discovers ingestable files on disk: a recursive walk
// that skips hidden entries, classifies files by extension, and enforces
// a size cap.
package collect

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

// DefaultMaxFileSize caps collected files at 10MB.
const DefaultMaxFileSize = 10 * 1024 * 1024

// FileClass groups supported extensions by how their content is treated.
type FileClass string

const (
	ClassMarkdown FileClass = "markdown"
	ClassText     FileClass = "text"
	ClassCode     FileClass = "code"
	ClassConfig   FileClass = "config"
)

// classByExtension maps lowercased extensions (without dot) to classes.
var classByExtension = map[string]FileClass{
	"md":       ClassMarkdown,
	"markdown": ClassMarkdown,

	"txt": ClassText,
	"csv": ClassText,
	"log": ClassText,

	"go":   ClassCode,
	"rs":   ClassCode,
	"ts":   ClassCode,
	"tsx":  ClassCode,
	"js":   ClassCode,
	"jsx":  ClassCode,
	"py":   ClassCode,
	"java": ClassCode,
	"c":    ClassCode,
	"cpp":  ClassCode,
	"h":    ClassCode,
	"hpp":  ClassCode,
	"sh":   ClassCode,
	"bash": ClassCode,
	"zsh":  ClassCode,
	"sql":  ClassCode,
	"html": ClassCode,
	"css":  ClassCode,
	"scss": ClassCode,

	"json": ClassConfig,
	"toml": ClassConfig,
	"yaml": ClassConfig,
	"yml":  ClassConfig,
	"xml":  ClassConfig,
	"ini":  ClassConfig,
}

// skipDirNames are directory names never worth descending into, over and
// above the hidden-entry rule.
var skipDirNames = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"__pycache__":  true,
}

// Classify returns the file class for a path, or false for unsupported
// extensions.
func Classify(path string) (FileClass, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	class, ok := classByExtension[ext]
	return class, ok
}

// CollectedFile describes one discovered file.
type CollectedFile struct {
	Path    string // absolute
	Class   FileClass
	Size    int64
	ModTime time.Time
}

// Stats summarizes one collection run.
type Stats struct {
	Found   int   // files collected
	Skipped int   // supported files dropped by the size cap
	Bytes   int64 // total size of collected files
}

// CollectorConfig tunes the collector.
type CollectorConfig struct {
	// MaxFileSize drops files above this many bytes. <= 0 uses the default.
	MaxFileSize int64

	// IncludeHidden keeps dotfiles and dot-directories in the walk.
	IncludeHidden bool

	// RespectGitignore applies the root .gitignore to the walk.
	RespectGitignore bool

	// Extensions restricts collection to these extensions (without dot);
	// empty means every supported extension.
	Extensions []string
}

// DefaultCollectorConfig returns the standard collector tuning.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		MaxFileSize:      DefaultMaxFileSize,
		RespectGitignore: true,
	}
}

// Collector discovers files under a root path.
type Collector struct {
	config CollectorConfig
}

// NewCollector creates a collector; zero config values fall back to
// defaults.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	return &Collector{config: cfg}
}

// CollectFile collects a single file. Unsupported extensions and
// oversized files are errors here, unlike the directory walk where they
// are silently skipped: the caller named this exact file.
func (c *Collector) CollectFile(path string) (*CollectedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ragerrors.New(ragerrors.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", abs), err)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ragerrors.ValidationError(
			fmt.Sprintf("not a file: %s", abs), nil)
	}

	class, ok := Classify(abs)
	if !ok || !c.extensionAllowed(abs) {
		return nil, ragerrors.ValidationError(
			fmt.Sprintf("unsupported file type: %s", filepath.Ext(abs)), nil).
			WithSuggestion("supported classes are markdown, text, code, and config files")
	}

	if info.Size() > c.config.MaxFileSize {
		return nil, ragerrors.New(ragerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("file exceeds size cap (%d > %d bytes): %s",
				info.Size(), c.config.MaxFileSize, abs), nil)
	}

	return &CollectedFile{
		Path:    abs,
		Class:   class,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// extensionAllowed applies the optional extension allowlist.
func (c *Collector) extensionAllowed(path string) bool {
	if len(c.config.Extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, allowed := range c.config.Extensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// CollectDirectory walks root recursively and returns every supported
// file plus run stats. Hidden entries and well-known dependency
// directories are pruned; unreadable entries are logged and skipped.
func (c *Collector) CollectDirectory(ctx context.Context, root string) ([]*CollectedFile, *Stats, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ragerrors.New(ragerrors.ErrCodeFileNotFound,
				fmt.Sprintf("directory not found: %s", abs), err)
		}
		return nil, nil, err
	}
	if !info.IsDir() {
		return nil, nil, ragerrors.ValidationError(
			fmt.Sprintf("not a directory: %s", abs), nil)
	}

	var files []*CollectedFile
	stats := &Stats{}

	ignore := &ignoreMatcher{}
	if c.config.RespectGitignore {
		ignore = loadIgnoreMatcher(abs)
	}

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			slog.Warn("walk_entry_failed", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		rel, relErr := filepath.Rel(abs, path)
		if relErr != nil {
			rel = name
		}

		if d.IsDir() {
			if path == abs {
				return nil
			}
			if skipDirNames[name] || (!c.config.IncludeHidden && strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			if ignore.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !c.config.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if ignore.Ignored(rel, false) {
			return nil
		}

		class, ok := Classify(path)
		if !ok || !c.extensionAllowed(path) {
			return nil
		}

		fileInfo, err := d.Info()
		if err != nil {
			slog.Warn("stat_failed", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}

		if fileInfo.Size() > c.config.MaxFileSize {
			stats.Skipped++
			slog.Debug("file_skipped_too_large",
				slog.String("path", path),
				slog.Int64("size", fileInfo.Size()))
			return nil
		}

		files = append(files, &CollectedFile{
			Path:    path,
			Class:   class,
			Size:    fileInfo.Size(),
			ModTime: fileInfo.ModTime(),
		})
		stats.Found++
		stats.Bytes += fileInfo.Size()
		return nil
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}

	slog.Info("directory_collected",
		slog.String("root", abs),
		slog.Int("found", stats.Found),
		slog.Int("skipped", stats.Skipped),
		slog.Int64("bytes", stats.Bytes))

	return files, stats, nil
}
