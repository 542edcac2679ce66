package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/siherrmann/ragchat"
	"github.com/siherrmann/ragchat/helper"
)

const kjvRepoURL = "https://raw.githubusercontent.com/arleym/kjv-markdown/master"

var kjvBooks = []string{
	"01 - Genesis - KJV.md",
	// "02 - Exodus - KJV.md", "03 - Leviticus - KJV.md",
}

func downloadBook(ctx context.Context, bookName string, outputDir string) (string, error) {
	outputPath := filepath.Join(outputDir, bookName)
	if _, err := os.Stat(outputPath); err == nil {
		return outputPath, nil
	}

	downloadURL := fmt.Sprintf("%s/%s", kjvRepoURL, url.PathEscape(bookName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", bookName, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", bookName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", bookName, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", bookName, err)
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", bookName, err)
	}

	return outputPath, nil
}

func main() {
	ctx := context.Background()

	config, err := helper.LoadConfiguration("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The sqlite index in ./kjv_index survives restarts, the books are only embedded once.
	config.Ingestion.DocsDirectory = "./kjv_docs"
	config.Index.Type = helper.IndexTypeSQLite
	config.Index.PersistDirectory = "./kjv_index"

	if err := os.MkdirAll(config.Ingestion.DocsDirectory, 0750); err != nil {
		log.Fatalf("Failed to create docs directory: %v", err)
	}
	for _, book := range kjvBooks {
		path, err := downloadBook(ctx, book, config.Ingestion.DocsDirectory)
		if err != nil {
			log.Fatalf("Failed to download book: %v", err)
		}
		fmt.Printf("Downloaded %s\n", path)
	}

	chatbot, err := ragchat.NewChatbotFromConfiguration(ctx, config, nil)
	if err != nil {
		log.Fatalf("Failed to create chatbot: %v", err)
	}
	defer chatbot.Close()

	count, err := chatbot.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count chunks: %v", err)
	}
	if count == 0 {
		start := time.Now()
		report, err := chatbot.IngestAndIndex(ctx, "")
		if err != nil {
			log.Fatalf("Failed to ingest books: %v", err)
		}
		fmt.Printf("Indexed %d chunks in %s\n", report.Chunks, time.Since(start))
	} else {
		fmt.Printf("Using %d persisted chunks\n", count)
	}

	sess := chatbot.NewSession()
	for _, question := range []string{
		"What did God create in the beginning?",
		"Who built the ark?",
		"What was the name of Abraham's son?",
	} {
		fmt.Printf("\nQ: %s\nA: %s\n", question, chatbot.Ask(ctx, sess, question))
	}
}
