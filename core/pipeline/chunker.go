package pipeline

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 20
	DefaultSeparator    = "\n"
)

// CharacterChunker splits text on separator and merges the pieces into chunks
// of at most chunkSize characters, repeating up to chunkOverlap characters
// between consecutive chunks. A single piece longer than chunkSize is kept whole.
// Empty chunks are dropped.
func CharacterChunker(chunkSize int, chunkOverlap int, separator string) ChunkFunc {
	return func(text string) ([]string, error) {
		if chunkSize <= 0 {
			return nil, fmt.Errorf("chunk size must be positive")
		}
		if chunkOverlap < 0 || chunkOverlap >= chunkSize {
			return nil, fmt.Errorf("chunk overlap must be between 0 and chunk size")
		}

		if strings.TrimSpace(text) == "" {
			return []string{}, nil
		}

		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{separator}),
		)

		splits, err := splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("failed to split text: %w", err)
		}

		chunks := make([]string, 0, len(splits))
		for _, split := range splits {
			if strings.TrimSpace(split) == "" {
				continue
			}
			chunks = append(chunks, split)
		}

		return chunks, nil
	}
}

// DefaultChunker splits on newlines into chunks of 1000 characters with 20 characters overlap.
func DefaultChunker() ChunkFunc {
	return CharacterChunker(DefaultChunkSize, DefaultChunkOverlap, DefaultSeparator)
}
