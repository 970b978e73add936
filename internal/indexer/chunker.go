package indexer

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// DefaultChunkSize is the default maximum chunk length in runes.
	DefaultChunkSize = 512
	// DefaultChunkOverlap is the default number of runes shared by neighboring chunks.
	DefaultChunkOverlap = 50
)

// Chunker splits note text into overlapping segments.
// It is stateless after construction and safe for concurrent use.
type Chunker struct {
	size     int
	overlap  int
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a Chunker producing chunks of at most size runes that
// overlap by up to overlap runes. overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	return &Chunker{
		size:    size,
		overlap: overlap,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured chunk overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the ordered non-empty chunks of text.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, part)
	}
	return chunks, nil
}
