// Package output renders CLI output: status lines, search results, and
// document listings, styled through the ui package.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/PALAN-K/palank-rag/internal/search"
	"github.com/PALAN-K/palank-rag/internal/store"
	"github.com/PALAN-K/palank-rag/internal/ui"
)

// DefaultSnippetWidth bounds rendered snippet/chunk text.
const DefaultSnippetWidth = 200

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	styles ui.Styles
}

// New creates a Writer rendering to out with the given styles.
func New(out io.Writer, styles ui.Styles) *Writer {
	return &Writer{out: out, styles: styles}
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.styles.Success.Render("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.styles.Warning.Render("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.styles.Error.Render("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Header prints a bold section header.
func (w *Writer) Header(msg string) {
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(msg))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Result renders one fused search hit:
//
//	1. Title [hybrid] (score: 0.0321)
//	   https://example.com/page
//	   ...snippet with highlighted terms...
func (w *Writer) Result(index int, r *search.FusedResult) {
	title := r.Title
	if title == "" {
		title = fmt.Sprintf("(document %d)", r.DocID)
	}

	_, _ = fmt.Fprintf(w.out, "%2d. %s %s %s\n",
		index,
		w.styles.Title.Render(title),
		w.styles.Badge.Render("["+string(r.Provenance)+"]"),
		w.styles.Score.Render(fmt.Sprintf("(score: %.4f)", r.Score)))

	if r.URL != "" {
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.URL.Render(r.URL))
	}

	if text := w.resultText(r); text != "" {
		_, _ = fmt.Fprintf(w.out, "    %s\n", text)
	}
	_, _ = fmt.Fprintln(w.out)
}

// resultText picks the display text for a hit: the keyword snippet when
// present (it carries match highlighting), else the best chunk.
func (w *Writer) resultText(r *search.FusedResult) string {
	if r.Snippet != "" {
		return w.renderSnippet(r.Snippet)
	}
	if r.ChunkText != "" {
		return w.styles.Snippet.Render(TruncateText(r.ChunkText, DefaultSnippetWidth))
	}
	return ""
}

// renderSnippet converts the keyword store's <b>..</b> highlight markers
// into terminal styling.
func (w *Writer) renderSnippet(snippet string) string {
	var sb strings.Builder
	rest := snippet
	for {
		start := strings.Index(rest, "<b>")
		if start < 0 {
			sb.WriteString(w.styles.Snippet.Render(rest))
			break
		}
		end := strings.Index(rest[start+3:], "</b>")
		if end < 0 {
			sb.WriteString(w.styles.Snippet.Render(rest))
			break
		}
		sb.WriteString(w.styles.Snippet.Render(rest[:start]))
		sb.WriteString(w.styles.Highlight.Render(rest[start+3 : start+3+end]))
		rest = rest[start+3+end+4:]
	}
	return sb.String()
}

// DocumentRow renders one row of a document listing.
func (w *Writer) DocumentRow(doc *store.Document) {
	framework := ""
	if doc.Framework != "" {
		framework = " " + w.styles.Badge.Render("["+doc.Framework+"]")
	}
	_, _ = fmt.Fprintf(w.out, "%6d  %s%s\n        %s\n",
		doc.ID,
		w.styles.Title.Render(TruncateText(doc.Title, 80)),
		framework,
		w.styles.URL.Render(doc.URL))
}

// KeyValue renders an aligned "key: value" status line.
func (w *Writer) KeyValue(key, value string) {
	_, _ = fmt.Fprintf(w.out, "  %-18s %s\n", key+":", value)
}

// TruncateText shortens s to at most max runes, appending an ellipsis
// when cut. Rune-based so multibyte text never splits mid-character.
func TruncateText(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
