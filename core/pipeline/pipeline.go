package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/siherrmann/ragchat/helper"
	"github.com/siherrmann/ragchat/model"
)

// Ingestor reads the documents of a directory and splits them into chunks.
type Ingestor struct {
	Loaders map[string]LoadFunc
	Chunker ChunkFunc
	log     *slog.Logger
}

// NewIngestor creates an ingestor with the default loaders.
func NewIngestor(chunker ChunkFunc, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		Loaders: DefaultLoaders(),
		Chunker: chunker,
		log:     logger,
	}
}

// Ingest returns the chunks of every recognized file in dir.
// A missing directory is created and yields no chunks. Files are read in name order,
// a file that fails to load or split is logged, reported as skipped and ignored.
// Chunk ids doc_0, doc_1, ... increase across all files of the run.
func (i *Ingestor) Ingest(dir string) ([]*model.Chunk, *model.IngestionReport, error) {
	report := model.NewIngestionReport(dir)
	chunks := []*model.Chunk{}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, helper.NewError("create documents directory", err)
		}
		i.log.Info("Created documents directory", slog.String("directory", dir))
		return chunks, finish(report), nil
	} else if err != nil {
		return nil, nil, helper.NewError("read documents directory", err)
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Name() < entries[b].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		load, ok := i.Loaders[extension(entry.Name())]
		if !ok {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		fileChunks, err := i.ingestFile(path, load, len(chunks))
		if err != nil {
			i.log.Error("Error processing file", slog.String("file", entry.Name()), slog.String("error", err.Error()))
			report.Skipped = append(report.Skipped, entry.Name())
			continue
		}

		i.log.Info("Split file into chunks", slog.String("file", entry.Name()), slog.Int("chunks", len(fileChunks)))
		report.Files = append(report.Files, entry.Name())
		chunks = append(chunks, fileChunks...)
	}

	report.Chunks = len(chunks)
	i.log.Info("Processed documents", slog.Int("files", len(report.Files)), slog.Int("skipped", len(report.Skipped)), slog.Int("chunks", len(chunks)))

	return chunks, finish(report), nil
}

func (i *Ingestor) ingestFile(path string, load LoadFunc, firstID int) ([]*model.Chunk, error) {
	pages, err := load(path)
	if err != nil {
		return nil, err
	}

	doc := model.NewDocument(path, pages)
	contents, err := i.Chunker(doc.Text())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	chunks := make([]*model.Chunk, 0, len(contents))
	for n, content := range contents {
		chunks = append(chunks, &model.Chunk{
			ID:         model.ChunkID(firstID + n),
			Content:    content,
			Source:     doc.Source,
			ChunkIndex: n,
			Metadata:   model.Metadata{"title": doc.Title},
			CreatedAt:  now,
		})
	}

	return chunks, nil
}

func finish(report *model.IngestionReport) *model.IngestionReport {
	report.Duration = time.Since(report.StartedAt).String()
	return report
}

// Pipeline combines ingestion and embedding
type Pipeline struct {
	Ingestor *Ingestor
	Embedder *Embedder
}

// NewPipeline creates a new processing pipeline
func NewPipeline(ingestor *Ingestor, embedder *Embedder) *Pipeline {
	return &Pipeline{
		Ingestor: ingestor,
		Embedder: embedder,
	}
}

// Process ingests dir and embeds all chunks in one batch.
// vectors[i] belongs to chunks[i].
func (p *Pipeline) Process(dir string) ([]*model.Chunk, [][]float32, *model.IngestionReport, error) {
	chunks, report, err := p.Ingestor.Ingest(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(chunks) == 0 {
		return chunks, [][]float32{}, report, nil
	}

	texts := make([]string, len(chunks))
	for n, chunk := range chunks {
		texts[n] = chunk.Content
	}

	vectors, err := p.Embedder.EmbedBatch(texts)
	if err != nil {
		return nil, nil, report, helper.NewError("embed chunks", err)
	}
	if len(vectors) != len(chunks) {
		return nil, nil, report, helper.NewError("embed chunks", fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors)))
	}

	return chunks, vectors, report, nil
}
