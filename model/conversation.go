package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message of a session history.
type ConversationTurn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GuardrailDecision records the outcome of the response checks.
type GuardrailDecision struct {
	Allowed     bool   `json:"allowed"`
	Check       string `json:"check,omitempty"`
	Replacement string `json:"replacement,omitempty"`
}
