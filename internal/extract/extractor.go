// Package extract turns collected files into ingestable documents.
// Text-class files (markdown, plain text, code, config) are read
// directly; binary formats are rejected with a descriptive error so a
// directory ingest can report them without aborting.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PALAN-K/palank-rag/internal/collect"
	ragerrors "github.com/PALAN-K/palank-rag/internal/errors"
)

// ExtractedDocument is the document-shaped output of extraction, ready
// to hand to the retriever.
type ExtractedDocument struct {
	URL     string // file:// URL of the source
	Title   string // file stem
	Content string
}

// Extractor reads collected files into documents.
type Extractor struct{}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads a collected file into a document. All current file
// classes are text-backed; anything else is an unsupported format.
func (e *Extractor) Extract(file *collect.CollectedFile) (*ExtractedDocument, error) {
	switch file.Class {
	case collect.ClassMarkdown, collect.ClassText, collect.ClassCode, collect.ClassConfig:
		return e.extractText(file.Path)
	default:
		return nil, ragerrors.ValidationError(
			fmt.Sprintf("unsupported file class %q: %s", file.Class, file.Path), nil)
	}
}

// extractText reads the file verbatim. Content that is not valid UTF-8
// is rejected: a misclassified binary would otherwise poison the index.
func (e *Extractor) extractText(path string) (*ExtractedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ragerrors.New(ragerrors.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", path), err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if !utf8.Valid(data) {
		return nil, ragerrors.ValidationError(
			fmt.Sprintf("file is not valid UTF-8 text: %s", path), nil).
			WithSuggestion("binary files cannot be ingested as text")
	}

	return &ExtractedDocument{
		URL:     FileURL(path),
		Title:   TitleFromPath(path),
		Content: string(data),
	}, nil
}

// TitleFromPath derives a document title from the file stem.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileURL renders an absolute path as a file:// URL, which serves as the
// document's stable identity for upserts.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + filepath.ToSlash(abs)
}
