// Package chunk splits document text into bounded, overlapping retrieval
// units. Splitting follows document structure: header boundaries first,
// then blank-line paragraphs, then single lines as a last resort.
package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// headerPattern matches ATX headers: # Title through ###### Title.
var headerPattern = regexp.MustCompile(`^#{1,6}\s`)

// MarkdownChunker splits text on markdown structure while keeping every
// chunk within the configured size bounds. It is stateless and safe for
// concurrent use.
type MarkdownChunker struct {
	config Config
}

var _ Chunker = (*MarkdownChunker)(nil)

// NewMarkdownChunker creates a chunker with default size bounds.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithConfig(DefaultConfig())
}

// NewMarkdownChunkerWithConfig creates a chunker with custom bounds.
// Non-positive MaxSize falls back to the default; negative MinSize and
// OverlapSize are treated as zero.
func NewMarkdownChunkerWithConfig(cfg Config) *MarkdownChunker {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if cfg.OverlapSize < 0 {
		cfg.OverlapSize = 0
	}
	return &MarkdownChunker{config: cfg}
}

// Name implements Chunker.
func (c *MarkdownChunker) Name() string {
	return "markdown"
}

// Chunk splits text into ordered chunks: header sections first, oversize
// sections split at paragraph then line boundaries, undersize chunks
// merged with a neighbor, and finally an overlap prefix injected between
// consecutive chunks when configured.
func (c *MarkdownChunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	for _, section := range c.splitSections(text) {
		chunks = append(chunks, c.splitLongSection(section)...)
	}

	filtered := chunks[:0]
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			filtered = append(filtered, chunk)
		}
	}

	return c.applyOverlap(c.mergeSmall(filtered))
}

// splitSections splits text at header lines. Headers inside fenced code
// blocks do not start a new section; the fence state toggles on every
// line whose first non-blank characters are ```.
func (c *MarkdownChunker) splitSections(text string) []string {
	var sections []string
	var current strings.Builder
	inFence := false

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
		}

		if !inFence && headerPattern.MatchString(line) && current.Len() > 0 {
			if section := strings.TrimSpace(current.String()); section != "" {
				sections = append(sections, section)
			}
			current.Reset()
		}

		current.WriteString(line)
		current.WriteByte('\n')
	}

	if section := strings.TrimSpace(current.String()); section != "" {
		sections = append(sections, section)
	}

	return sections
}

// splitLongSection breaks a section exceeding MaxSize at blank-line
// paragraph boundaries, packing paragraphs greedily. A paragraph that
// alone exceeds MaxSize is split at line boundaries; a single line is
// atomic and is kept whole even when it exceeds MaxSize.
func (c *MarkdownChunker) splitLongSection(section string) []string {
	if len(section) <= c.config.MaxSize {
		return []string{section}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(section, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > c.config.MaxSize {
			flush()
		}

		if len(para) > c.config.MaxSize {
			flush()
			rest := c.splitByLines(para, func(chunk string) {
				chunks = append(chunks, chunk)
			})
			current.WriteString(rest)
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// splitByLines packs the lines of an oversize paragraph into chunks of at
// most MaxSize, emitting each full chunk. The trailing remainder is
// returned instead of emitted so it can seed the next chunk.
func (c *MarkdownChunker) splitByLines(para string, emit func(string)) string {
	var lineChunk strings.Builder

	for _, line := range strings.Split(para, "\n") {
		if lineChunk.Len() > 0 && lineChunk.Len()+len(line)+1 > c.config.MaxSize {
			emit(lineChunk.String())
			lineChunk.Reset()
		}
		if lineChunk.Len() > 0 {
			lineChunk.WriteByte('\n')
		}
		lineChunk.WriteString(line)
	}

	return lineChunk.String()
}

// mergeSmall joins adjacent chunks with a blank line while either side is
// below MinSize and the joined chunk still fits MaxSize.
func (c *MarkdownChunker) mergeSmall(chunks []string) []string {
	if c.config.MinSize == 0 {
		return chunks
	}

	result := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if n := len(result); n > 0 {
			prev := result[n-1]
			if (len(prev) < c.config.MinSize || len(chunk) < c.config.MinSize) &&
				len(prev)+len(chunk)+2 <= c.config.MaxSize {
				result[n-1] = prev + "\n\n" + chunk
				continue
			}
		}
		result = append(result, chunk)
	}

	return result
}

// applyOverlap prepends to each chunk after the first a suffix of the
// previous chunk's original text, marked off with "..." and "---" lines.
func (c *MarkdownChunker) applyOverlap(chunks []string) []string {
	if c.config.OverlapSize == 0 || len(chunks) < 2 {
		return chunks
	}

	result := make([]string, 0, len(chunks))
	result = append(result, chunks[0])

	for i := 1; i < len(chunks); i++ {
		overlap := c.overlapSuffix(chunks[i-1])
		if overlap == "" {
			result = append(result, chunks[i])
			continue
		}
		result = append(result, "...\n"+overlap+"\n---\n"+chunks[i])
	}

	return result
}

// overlapSuffix returns the tail of prev to inject before the next chunk,
// or "" when the window holds no usable suffix. The window start advances
// to the next rune start so a multi-byte character is never cut, then past
// the first whitespace so the overlap never begins mid-word. Suffixes of
// minOverlapChars or fewer characters after trimming are dropped.
func (c *MarkdownChunker) overlapSuffix(prev string) string {
	start := len(prev) - c.config.OverlapSize
	if start < 0 {
		start = 0
	}
	for start < len(prev) && !utf8.RuneStart(prev[start]) {
		start++
	}

	idx := strings.IndexFunc(prev[start:], unicode.IsSpace)
	if idx < 0 {
		return ""
	}
	_, size := utf8.DecodeRuneInString(prev[start+idx:])
	start += idx + size

	overlap := strings.TrimSpace(prev[start:])
	if utf8.RuneCountInString(overlap) <= minOverlapChars {
		return ""
	}
	return overlap
}
