package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/siherrmann/ragchat"
	"github.com/siherrmann/ragchat/database"
	"github.com/siherrmann/ragchat/helper"
)

const sampleContent1 = `Technova was founded in 2023 by a small team of engineers.
The headquarters of Technova are in Berlin.`

const sampleContent2 = `Vector embeddings capture the semantic meaning of text, enabling similarity-based search.
Cosine distance compares the angle between two vectors, lower values mean more similar texts.
PostgreSQL with the pgvector extension stores embeddings and ranks them by distance.`

func main() {
	ctx := context.Background()

	// Start a test PostgreSQL container with pgvector
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	for key, value := range map[string]string{
		"DB_HOST":     "localhost",
		"DB_PORT":     dbPort,
		"DB_DATABASE": "database",
		"DB_USERNAME": "user",
		"DB_PASSWORD": "password",
		"DB_SCHEMA":   "public",
		"DB_SSLMODE":  "disable",
	} {
		if err := os.Setenv(key, value); err != nil {
			log.Fatalf("Failed to set %s: %v", key, err)
		}
	}

	config, err := helper.LoadConfiguration("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	docsDir, err := os.MkdirTemp("", "ragchat-docs-*")
	if err != nil {
		log.Fatalf("Failed to create docs directory: %v", err)
	}
	defer os.RemoveAll(docsDir)

	for name, content := range map[string]string{"about.txt": sampleContent1, "vectors.md": sampleContent2} {
		if err := os.WriteFile(filepath.Join(docsDir, name), []byte(content), 0600); err != nil {
			log.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	config.Ingestion.DocsDirectory = docsDir
	config.Index.Type = helper.IndexTypePgvector
	config.Index.VectorIndex = database.VectorIndexHNSW
	// Only keep close matches
	config.Retrieval.MaxDistance = 0.5

	chatbot, err := ragchat.NewChatbotFromConfiguration(ctx, config, nil)
	if err != nil {
		log.Fatalf("Failed to create chatbot: %v", err)
	}
	defer chatbot.Close()

	report, err := chatbot.IngestAndIndex(ctx, "")
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}
	fmt.Printf("Ingestion run %s indexed %d chunks in %s\n", report.RunID, report.Chunks, report.Duration)

	// Inspect the raw ranking before asking
	question := "How does cosine distance work?"
	retrieved := chatbot.Retriever.Retrieve(ctx, question, 3)
	fmt.Printf("\nRetrieval status for %q: %s\n", question, retrieved.Status)
	for i, result := range retrieved.Results {
		fmt.Printf("  %d. %s (distance %.4f)\n", i+1, result.Source, result.Distance)
	}

	sess := chatbot.NewSession()
	fmt.Printf("\nQ: %s\nA: %s\n", question, chatbot.Ask(ctx, sess, question))

	if err := chatbot.ClearIndex(ctx); err != nil {
		log.Fatalf("Failed to clear index: %v", err)
	}
	fmt.Printf("\nAfter clearing the index:\nA: %s\n", chatbot.Ask(ctx, sess, question))
}
