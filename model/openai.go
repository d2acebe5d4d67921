package model

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is the single adapter to the model provider. It serves
// both embeddings and chat completions, with an explicit per-call
// timeout and a bounded retry instead of whatever the client library
// defaults to.
type OpenAIClient struct {
	client     *openai.Client
	embedModel string
	timeout    time.Duration
	retries    int
}

func NewOpenAIClient(apiKey, embedModel string, timeout time.Duration, retries int) *OpenAIClient {
	return &OpenAIClient{
		client:     openai.NewClient(apiKey),
		embedModel: embedModel,
		timeout:    timeout,
		retries:    retries,
	}
}

// EmbedBatch embeds all texts in one API call and returns unit-norm
// vectors in input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openai.EmbeddingResponse
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		resp, err = c.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.embedModel),
			Input: texts,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		Normalize(v)
		vectors[i] = v
	}
	return vectors, nil
}

// Complete issues a chat completion with the adapter's timeout and
// retry applied.
func (c *OpenAIClient) Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	err := c.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		resp, err = c.client.CreateChatCompletion(callCtx, req)
		return err
	})
	if err != nil {
		return resp, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

func (c *OpenAIClient) withRetry(ctx context.Context, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := call(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}
