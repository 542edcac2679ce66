package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/siherrmann/ragchat/helper"
)

// ErrEmptyCompletion is returned when the model answers without content.
var ErrEmptyCompletion = errors.New("empty completion")

// CompleteFunc sends a system and a user prompt to a chat model and returns its answer.
type CompleteFunc func(ctx context.Context, systemPrompt string, userPrompt string) (string, error)

// NewOpenAICompleter creates a CompleteFunc backed by the OpenAI chat completions endpoint.
// Every call is bounded by the configured timeout. A response without choices
// or with blank content returns ErrEmptyCompletion.
func NewOpenAICompleter(config helper.LLMConfiguration) (CompleteFunc, error) {
	if config.APIKey == "" {
		return nil, helper.ErrMissingAPIKey
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := openai.NewClient(options...)

	timeout := time.Duration(config.TimeoutSeconds) * time.Second

	return func(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(config.Model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			},
			Temperature: openai.Float(config.Temperature),
		}
		if config.MaxTokens > 0 {
			params.MaxTokens = openai.Int(config.MaxTokens)
		}

		completion, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("failed to create chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", ErrEmptyCompletion
		}

		content := completion.Choices[0].Message.Content
		if strings.TrimSpace(content) == "" {
			return "", ErrEmptyCompletion
		}

		return content, nil
	}, nil
}
