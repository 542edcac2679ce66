package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/siherrmann/ragchat/core/llm"
	"github.com/siherrmann/ragchat/model"
)

const SystemPrompt = "You are a helpful assistant that answers questions based only on the provided context. " +
	"If the answer cannot be found in the context, say that you don't have enough information."

const userPromptTemplate = "Context:\n%s\n\nQuestion: %s\n\nAnswer based only on the provided context:"

// BuildPrompt returns the user prompt constraining the answer to contextText.
func BuildPrompt(query string, contextText string) string {
	return fmt.Sprintf(userPromptTemplate, contextText, query)
}

// Generator answers questions from retrieved context through a chat model.
type Generator struct {
	complete llm.CompleteFunc
	log      *slog.Logger
}

func NewGenerator(complete llm.CompleteFunc, logger *slog.Logger) *Generator {
	return &Generator{
		complete: complete,
		log:      logger,
	}
}

// Answer asks the model to answer query from contextText.
// Model failures and blank answers return model.ApologyMessage.
func (g *Generator) Answer(ctx context.Context, query string, contextText string) string {
	response, err := g.complete(ctx, SystemPrompt, BuildPrompt(query, contextText))
	if err != nil {
		g.log.Error("Error generating answer", slog.String("error", err.Error()))
		return model.ApologyMessage
	}

	response = strings.TrimSpace(response)
	if response == "" {
		g.log.Error("Error generating answer", slog.String("error", "empty completion"))
		return model.ApologyMessage
	}

	return response
}
