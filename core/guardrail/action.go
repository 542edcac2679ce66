package guardrail

import (
	"context"

	"github.com/siherrmann/ragchat/model"
)

// Action names one step of a guarded turn.
type Action int

const (
	ActionRetrieveContext Action = iota
	ActionGenerateAnswer
	ActionCheckFormat
	ActionCheckBlockedTerms
)

func (a Action) String() string {
	switch a {
	case ActionRetrieveContext:
		return "retrieve_context"
	case ActionGenerateAnswer:
		return "generate_answer"
	case ActionCheckFormat:
		return "check_response_format"
	case ActionCheckBlockedTerms:
		return "check_blocked_terms"
	default:
		return "unknown"
	}
}

// Turn is the state of one question passing through the actions.
type Turn struct {
	Query    string
	Context  *model.RetrievedContext
	Response string
}

// ActionFunc runs one action on a turn.
// Check actions return false if the response must not be delivered,
// the other actions always return true.
type ActionFunc func(ctx context.Context, turn *Turn) bool

// ContextRetriever returns the context for a question.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, k int) *model.RetrievedContext
}

// AnswerGenerator answers a question from context text.
type AnswerGenerator interface {
	Answer(ctx context.Context, query string, contextText string) string
}
