package port

import "context"

// Generator abstracts the text generation backend.
// Implementations can target Ollama, Gemini, or any compatible API.
type Generator interface {
	// ModelName returns the identifier of the model being used.
	ModelName() string

	// Generate sends a fully composed prompt and returns the model's reply.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into vectors for the knowledge index.
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
