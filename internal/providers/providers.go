// Package providers declares the upstream generation capabilities the router
// dispatches to. Concrete adapters live in subpackages.
package providers

import "context"

// CompletionProvider produces a chat reply.
type CompletionProvider interface {
	Complete(ctx context.Context, systemPrompt, userMessage string, maxTokens int, temperature float64) (string, error)
}

// VideoProvider renders a video and returns its URLs. Some upstreams return a
// single URL, others a sequence.
type VideoProvider interface {
	Generate(ctx context.Context, prompt string) ([]string, error)
}

// ImageProvider renders an image and returns the encoded bytes.
type ImageProvider interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// CompletionFunc adapts a function to CompletionProvider.
type CompletionFunc func(ctx context.Context, systemPrompt, userMessage string, maxTokens int, temperature float64) (string, error)

func (f CompletionFunc) Complete(ctx context.Context, systemPrompt, userMessage string, maxTokens int, temperature float64) (string, error) {
	return f(ctx, systemPrompt, userMessage, maxTokens, temperature)
}

// VideoFunc adapts a function to VideoProvider.
type VideoFunc func(ctx context.Context, prompt string) ([]string, error)

func (f VideoFunc) Generate(ctx context.Context, prompt string) ([]string, error) { return f(ctx, prompt) }

// ImageFunc adapts a function to ImageProvider.
type ImageFunc func(ctx context.Context, prompt string) ([]byte, error)

func (f ImageFunc) Generate(ctx context.Context, prompt string) ([]byte, error) { return f(ctx, prompt) }
