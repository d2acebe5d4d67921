package model

import (
	"context"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns a batch of texts into one vector per text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatCompleter wraps the chat completion call so the agent can be
// exercised with a mock in tests.
type ChatCompleter interface {
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Normalize scales v to unit L2 norm in place, so that inner product
// equals cosine similarity. A zero vector is left unchanged.
func Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
