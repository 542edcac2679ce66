package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/siherrmann/ragchat"
	"github.com/siherrmann/ragchat/helper"
)

const sampleContent = `Technova is a software company that builds tools for document search.
Technova was founded in 2023 by a small team of engineers.
The headquarters of Technova are in Berlin.

Technova's main product answers questions about uploaded PDF documents.
It splits documents into chunks, embeds them and retrieves the most similar chunks for every question.`

func main() {
	ctx := context.Background()

	// Reads OPENAI_API_KEY from the environment or a .env file
	config, err := helper.LoadConfiguration("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	docsDir, err := os.MkdirTemp("", "ragchat-docs-*")
	if err != nil {
		log.Fatalf("Failed to create docs directory: %v", err)
	}
	defer os.RemoveAll(docsDir)

	if err := os.WriteFile(filepath.Join(docsDir, "about.txt"), []byte(sampleContent), 0600); err != nil {
		log.Fatalf("Failed to write sample document: %v", err)
	}

	config.Ingestion.DocsDirectory = docsDir
	config.Index.Type = helper.IndexTypeMemory

	chatbot, err := ragchat.NewChatbotFromConfiguration(ctx, config, nil)
	if err != nil {
		log.Fatalf("Failed to create chatbot: %v", err)
	}
	defer chatbot.Close()

	fmt.Println("Ingesting documents...")
	report, err := chatbot.IngestAndIndex(ctx, "")
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}
	fmt.Printf("Indexed %d chunks from %d files\n", report.Chunks, len(report.Files))

	sess := chatbot.NewSession()
	for _, question := range []string{
		"When was Technova founded?",
		"Where is Technova located?",
		"What is the proprietary formula of Technova?",
	} {
		fmt.Printf("\nQ: %s\n", question)
		fmt.Printf("A: %s\n", chatbot.Ask(ctx, sess, question))
	}

	fmt.Printf("\nSession %s has %d messages\n", sess.ID, len(sess.Messages()))
}
