package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFLoader(t *testing.T) {
	t.Run("Extracts text page by page", func(t *testing.T) {
		pages, err := PDFLoader()(filepath.Join("testdata", "about.pdf"))

		require.NoError(t, err)
		require.Len(t, pages, 2)
		assert.Contains(t, pages[0], "Technova was founded in 2023")
		assert.Contains(t, pages[1], "Berlin")
	})

	t.Run("Error for missing file", func(t *testing.T) {
		_, err := PDFLoader()(filepath.Join(t.TempDir(), "missing.pdf"))

		assert.Error(t, err)
	})

	t.Run("Error for malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.pdf")
		require.NoError(t, os.WriteFile(path, []byte("this is not a pdf"), 0600))

		pages, err := PDFLoader()(path)

		assert.Error(t, err)
		assert.Nil(t, pages)
	})
}

func TestTextLoader(t *testing.T) {
	t.Run("Reads whole file as one page", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("line one\nline two"), 0600))

		pages, err := TextLoader()(path)

		require.NoError(t, err)
		require.Len(t, pages, 1)
		assert.Equal(t, "line one\nline two", pages[0])
	})

	t.Run("Error for missing file", func(t *testing.T) {
		_, err := TextLoader()(filepath.Join(t.TempDir(), "missing.txt"))

		assert.Error(t, err)
	})
}

func TestDefaultLoaders(t *testing.T) {
	loaders := DefaultLoaders()

	for _, ext := range []string{".pdf", ".txt", ".md"} {
		assert.Contains(t, loaders, ext, "Expected a loader for %s", ext)
	}
	assert.NotContains(t, loaders, ".csv")
	assert.Equal(t, ".pdf", extension("Report.PDF"))
}
