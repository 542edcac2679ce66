package model

// RetrieveConfig configures a single retrieval.
type RetrieveConfig struct {
	TopK int `json:"top_k"`
	// MaxDistance drops matches with a larger cosine distance, 0 disables it.
	MaxDistance float64 `json:"max_distance,omitempty"`
}

// DefaultRetrieveConfig returns the top 3 matches without a distance cutoff.
func DefaultRetrieveConfig() RetrieveConfig {
	return RetrieveConfig{
		TopK:        3,
		MaxDistance: 0,
	}
}
