package ai

import "context"

// ChatCompleter issues one stateless language-model call per invocation.
// The pipeline depends on this narrow contract so tests can substitute
// deterministic fakes for the live OpenAI client.
type ChatCompleter interface {
	// Complete sends a system instruction and a user prompt, returning the
	// model's text response.
	Complete(ctx context.Context, system, user string) (string, error)

	// CompleteWithImages sends a prompt together with rendered page images
	// for vision-based text extraction.
	CompleteWithImages(ctx context.Context, prompt string, images [][]byte) (string, error)
}

// Embedder converts text into a fixed-width numeric vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the width of vectors produced by Embed
	Dimensions() int
}
