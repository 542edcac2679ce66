package model

import "strings"

// UnknownSource is rendered for matches without a source.
const UnknownSource = "Unknown source"

// RetrievalResult is one ranked match of a vector query.
type RetrievalResult struct {
	ChunkID  string   `json:"chunk_id"`
	Content  string   `json:"content"`
	Source   string   `json:"source"`
	Distance float64  `json:"distance"` // cosine distance, lower is more similar
	Metadata Metadata `json:"metadata,omitempty"`
}

type ContextStatus string

const (
	ContextFound       ContextStatus = "found"
	ContextEmptyQuery  ContextStatus = "empty_query"
	ContextEmptyIndex  ContextStatus = "empty_index"
	ContextNoMatch     ContextStatus = "no_match"
	ContextUnavailable ContextStatus = "unavailable"
)

// RetrievedContext is the outcome of a retrieval.
// Text holds the formatted context block if found,
// otherwise a message describing why nothing was found.
type RetrievedContext struct {
	Status  ContextStatus      `json:"status"`
	Text    string             `json:"text"`
	Results []*RetrievalResult `json:"results,omitempty"`
}

// Found reports whether the context can be used for answering.
func (c *RetrievedContext) Found() bool {
	return c != nil && c.Status == ContextFound && strings.TrimSpace(c.Text) != ""
}

// NewNoInformationContext returns the empty signal for the given status.
func NewNoInformationContext(status ContextStatus) *RetrievedContext {
	text := NoInformationMessage
	switch status {
	case ContextEmptyIndex:
		text = NoContextMessage
	case ContextNoMatch:
		text = NoRelevantContextMessage
	}
	return &RetrievedContext{
		Status: status,
		Text:   text,
	}
}
