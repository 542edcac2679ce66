package guardrail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/ragchat/helper"
	"github.com/siherrmann/ragchat/model"
)

// checks run in this order, the first failing one replaces the response.
var checks = []Action{ActionCheckFormat, ActionCheckBlockedTerms}

// Rails runs a question through retrieval and generation and checks the response before delivery.
type Rails struct {
	actions map[Action]ActionFunc
	refusal string
	log     *slog.Logger
}

// Option customizes Rails at construction.
type Option func(*Rails)

// WithAction replaces the handler registered for action.
func WithAction(action Action, fn ActionFunc) Option {
	return func(r *Rails) {
		r.actions[action] = fn
	}
}

// NewRails registers the built-in actions once.
// Retrieval delegates to retriever, generation to generator, and the checks use config.
func NewRails(retriever ContextRetriever, generator AnswerGenerator, config helper.RailsConfiguration, logger *slog.Logger, opts ...Option) *Rails {
	refusal := config.RefusalMessage
	if refusal == "" {
		refusal = model.RefusalMessage
	}
	terms := config.BlockedTerms
	if terms == nil {
		terms = helper.DefaultBlockedTerms()
	}
	maxLength := config.MaxResponseLength

	r := &Rails{
		actions: map[Action]ActionFunc{
			ActionRetrieveContext: func(ctx context.Context, turn *Turn) bool {
				turn.Context = retriever.Retrieve(ctx, turn.Query, 0)
				return true
			},
			ActionGenerateAnswer: func(ctx context.Context, turn *Turn) bool {
				if !turn.Context.Found() {
					turn.Response = model.NoInformationMessage
					return true
				}
				turn.Response = generator.Answer(ctx, turn.Query, turn.Context.Text)
				return true
			},
			ActionCheckFormat: func(ctx context.Context, turn *Turn) bool {
				return CheckResponseFormat(turn.Response, maxLength)
			},
			ActionCheckBlockedTerms: func(ctx context.Context, turn *Turn) bool {
				return !CheckBlockedTerms(turn.Response, terms)
			},
		},
		refusal: refusal,
		log:     logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run invokes the handler registered for action.
func (r *Rails) Run(ctx context.Context, action Action, turn *Turn) (bool, error) {
	fn, ok := r.actions[action]
	if !ok || fn == nil {
		return false, helper.NewError("run action", fmt.Errorf("no handler registered for action %s", action))
	}
	return fn(ctx, turn), nil
}

// Generate answers query and returns the response to deliver with the check decision.
// A response failing a check is replaced by the refusal message.
func (r *Rails) Generate(ctx context.Context, query string) (string, *model.GuardrailDecision) {
	turn := &Turn{Query: query}

	for _, action := range []Action{ActionRetrieveContext, ActionGenerateAnswer} {
		if _, err := r.Run(ctx, action, turn); err != nil {
			r.log.Error("Error running action", slog.String("action", action.String()), slog.String("error", err.Error()))
			return model.ApologyMessage, &model.GuardrailDecision{Allowed: false, Check: action.String(), Replacement: model.ApologyMessage}
		}
	}

	for _, check := range checks {
		passed, err := r.Run(ctx, check, turn)
		if err != nil {
			r.log.Error("Error running check", slog.String("action", check.String()), slog.String("error", err.Error()))
		}
		if !passed {
			r.log.Warn("Response replaced", slog.String("check", check.String()))
			return r.refusal, &model.GuardrailDecision{Allowed: false, Check: check.String(), Replacement: r.refusal}
		}
	}

	return turn.Response, &model.GuardrailDecision{Allowed: true}
}
