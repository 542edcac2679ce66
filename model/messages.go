package model

import "errors"

const (
	NoInformationMessage     = "I don't have enough information to answer that question."
	NoContextMessage         = "No context available in the database."
	NoRelevantContextMessage = "No relevant context found."
	ApologyMessage           = "I apologize, but I encountered an error. Please try again."
	RefusalMessage           = "I'm sorry, I can't respond to that."
)

var (
	// ErrLengthMismatch is returned when chunks and vectors differ in length.
	ErrLengthMismatch = errors.New("chunks and vectors must have the same length")
	// ErrDimensionMismatch is returned for vectors not matching the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
