package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/ai"
)

// Connectivity check for the OpenAI chat and embedding endpoints. Run this
// before deploying to confirm credentials and model access.
func main() {
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	model := flag.String("model", "gpt-4o", "Chat model to probe")
	embedModel := flag.String("embedding-model", "text-embedding-3-small", "Embedding model to probe")
	timeout := flag.Duration("timeout", 30*time.Second, "API call timeout")
	flag.Parse()

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "ERROR: OPENAI_API_KEY not set and no --key flag provided")
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := ai.NewOpenAIClient(ai.ClientConfig{
		APIKey:         *apiKey,
		ChatModel:      *model,
		EmbeddingModel: *embedModel,
		EmbeddingDims:  1536,
		Temperature:    0,
		MaxTokens:      16,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("Probing chat model %s...\n", *model)
	reply, err := client.Complete(ctx, "You are a connectivity probe.", "Reply with the single word OK.")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat probe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Chat probe succeeded: %q\n", reply)

	fmt.Printf("Probing embedding model %s...\n", *embedModel)
	vec, err := client.Embed(ctx, "connectivity probe")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding probe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Embedding probe succeeded: %d dimensions\n", len(vec))
}
