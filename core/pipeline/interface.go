package pipeline

// LoadFunc extracts the text of a file page by page.
type LoadFunc func(path string) ([]string, error)

// ChunkFunc splits text into chunk contents in document order.
type ChunkFunc func(text string) ([]string, error)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// BatchEmbedFunc embeds several texts, returning one vector per text in input order.
type BatchEmbedFunc func(texts []string) ([][]float32, error)
