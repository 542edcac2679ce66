package model

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is a source file read from the documents directory.
type Document struct {
	Title    string   `json:"title"`
	Source   string   `json:"source"` // file name, used to tag chunks
	Path     string   `json:"path"`
	Pages    []string `json:"-"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// NewDocument creates a document for the file at path with the extracted pages.
func NewDocument(path string, pages []string) *Document {
	source := filepath.Base(path)
	title := strings.TrimSuffix(source, filepath.Ext(source))
	if title == "" {
		title = source
	}

	return &Document{
		Title:  title,
		Source: source,
		Path:   path,
		Pages:  pages,
		Metadata: Metadata{
			"pages": len(pages),
		},
	}
}

// Text concatenates the pages. Page boundaries are not kept.
func (d *Document) Text() string {
	return strings.Join(d.Pages, "\n")
}

// IngestionReport summarizes one ingestion run.
type IngestionReport struct {
	RunID     uuid.UUID `json:"run_id"`
	Directory string    `json:"directory"`
	Files     []string  `json:"files"`
	Skipped   []string  `json:"skipped,omitempty"`
	Chunks    int       `json:"chunks"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// NewIngestionReport starts a report for a run over dir.
func NewIngestionReport(dir string) *IngestionReport {
	return &IngestionReport{
		RunID:     uuid.New(),
		Directory: dir,
		Files:     []string{},
		StartedAt: time.Now(),
	}
}
