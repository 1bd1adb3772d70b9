// Package chunk splits Markdown into segments for embedding.
package chunk

import "strings"

const (
	DefaultChunkSize = 1024
	DefaultOverlap   = 128
)

// Chunker splits on level-1 and level-2 headers and falls back to a fixed
// rune window for content without headers.
type Chunker struct {
	chunkSize int
	overlap   int
}

type Option func(*Chunker)

// WithChunkSize sets the window size in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets how many runes consecutive windows share.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

// Split returns the header sections of md, or fixed windows when md has no
// level-1 or level-2 headers. Blank input yields no chunks.
func (c *Chunker) Split(md string) []string {
	if strings.TrimSpace(md) == "" {
		return nil
	}
	if sections := SplitMarkdown(md); len(sections) > 0 {
		return sections
	}
	return c.Window(md)
}

// SplitMarkdown cuts md before every "#" or "##" header line outside fenced
// code blocks. Each section keeps its header line. It returns nil when md
// contains no such header.
func SplitMarkdown(md string) []string {
	lines := strings.Split(md, "\n")

	var (
		sections  []string
		current   []string
		inFence   bool
		sawHeader bool
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			sections = append(sections, text)
		}
		current = current[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}
		if !inFence && isSplitHeader(trimmed) {
			sawHeader = true
			flush()
		}
		current = append(current, line)
	}
	flush()

	if !sawHeader {
		return nil
	}
	return sections
}

func isSplitHeader(line string) bool {
	for _, prefix := range []string{"# ", "## "} {
		if strings.HasPrefix(line, prefix) && strings.TrimSpace(line[len(prefix):]) != "" {
			return true
		}
	}
	return false
}

// Window cuts text into chunkSize-rune windows, each starting chunkSize-overlap
// runes after the previous one. The last window ends at the end of text.
func (c *Chunker) Window(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.chunkSize - c.overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
	}
	return chunks
}
