package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFLoader extracts the plain text of every page of a PDF file.
// Malformed files that make the parser panic are reported as errors.
func PDFLoader() LoadFunc {
	return func(path string) (pages []string, err error) {
		defer func() {
			if r := recover(); r != nil {
				pages = nil
				err = fmt.Errorf("failed to parse pdf: %v", r)
			}
		}()

		file, reader, err := pdf.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open pdf: %w", err)
		}
		defer file.Close()

		for i := 1; i <= reader.NumPage(); i++ {
			page := reader.Page(i)
			if page.V.IsNull() {
				continue
			}

			text, err := page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to extract text of page %d: %w", i, err)
			}
			pages = append(pages, text)
		}

		return pages, nil
	}
}

// TextLoader reads a plain text file as a single page.
func TextLoader() LoadFunc {
	return func(path string) ([]string, error) {
		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return []string{string(content)}, nil
	}
}

// DefaultLoaders returns the loaders for the recognized file extensions.
func DefaultLoaders() map[string]LoadFunc {
	return map[string]LoadFunc{
		".pdf": PDFLoader(),
		".txt": TextLoader(),
		".md":  TextLoader(),
	}
}

func extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
