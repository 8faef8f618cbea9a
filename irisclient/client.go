// Package irisclient binds the iris LLM SDK to the provider package's
// completion and embedding contracts. Provider names follow the iris
// registry ("openai", "anthropic", "ollama").
package irisclient

import (
	"context"
	"fmt"

	iriscore "github.com/petal-labs/iris/core"
	"github.com/petal-labs/iris/providers"
	// Auto-register common providers.
	_ "github.com/petal-labs/iris/providers/anthropic"
	_ "github.com/petal-labs/iris/providers/ollama"
	_ "github.com/petal-labs/iris/providers/openai"

	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/provider"
)

// Client adapts one iris provider to both AI contracts.
type Client struct {
	provider iriscore.Provider
	model    string
}

// New creates a client for the named provider. Model may be empty; requests
// then rely on the provider's default.
func New(name, apiKey, model string) (*Client, error) {
	p, err := providers.Create(name, apiKey)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", name, err)
	}
	return &Client{provider: p, model: model}, nil
}

// Complete sends a chat request and returns the text output.
func (c *Client) Complete(ctx context.Context, req provider.CompletionRequest) (string, error) {
	chatReq := &iriscore.ChatRequest{
		Model:        iriscore.ModelID(c.model),
		Instructions: req.Instructions,
		Messages: []iriscore.Message{
			{Role: iriscore.RoleUser, Content: req.Prompt},
		},
	}
	if req.Temperature != nil {
		temp := *req.Temperature
		chatReq.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		chatReq.MaxTokens = &maxTokens
	}

	resp, err := c.provider.Chat(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("provider chat failed: %w", err)
	}
	return resp.Output, nil
}

// embeddingCapable is the optional embedding surface of an iris provider.
// Not every registered provider implements it.
type embeddingCapable interface {
	CreateEmbeddings(ctx context.Context, req *iriscore.EmbeddingRequest) (*iriscore.EmbeddingResponse, error)
}

// Embed computes one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	embedder, ok := c.provider.(embeddingCapable)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support embeddings", c.provider.ID())
	}

	inputs := make([]iriscore.EmbeddingInput, len(texts))
	for i, text := range texts {
		inputs[i] = iriscore.EmbeddingInput{Text: text}
	}

	resp, err := embedder.CreateEmbeddings(ctx, &iriscore.EmbeddingRequest{
		Model: iriscore.ModelID(c.model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("provider embeddings failed: %w", err)
	}
	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("provider returned %d vectors for %d inputs", len(resp.Vectors), len(texts))
	}

	out := make([][]float64, len(resp.Vectors))
	for i, vec := range resp.Vectors {
		converted := make([]float64, len(vec.Vector))
		for j, f := range vec.Vector {
			converted[j] = float64(f)
		}
		out[i] = converted
	}
	return out, nil
}

// Dialer constructs iris-backed clients from decrypted AI credentials. The
// credential's provider name selects the iris registry entry.
type Dialer struct{}

// Completion builds a completion client from credentials.
func (Dialer) Completion(ctx context.Context, creds connection.AICredentials) (provider.CompletionClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return New(creds.Provider, creds.APIKey, creds.Model)
}

// Embedding builds an embedding client from credentials.
func (Dialer) Embedding(ctx context.Context, creds connection.AICredentials) (provider.EmbeddingClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return New(creds.Provider, creds.APIKey, creds.Model)
}

var (
	_ provider.CompletionClient = (*Client)(nil)
	_ provider.EmbeddingClient  = (*Client)(nil)
	_ provider.Dialer           = Dialer{}
)
