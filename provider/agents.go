package provider

import (
	"context"
	"fmt"
)

// Task prompts for the AI-backed transformers. Keyed by the transformer's
// task string; unknown tasks fall back to a generic instruction.
var taskInstructions = map[string]string{
	"image":     "Describe the image content in detail for retrieval indexing.",
	"table":     "Convert the table into a concise textual summary preserving all values.",
	"entities":  "Extract named entities and their relationships as structured text.",
	"fields":    "Extract the requested structured fields from the document text.",
	"summary":   "Write a faithful summary of the document text.",
	"translate": "Translate the document text, preserving formatting.",
	"keywords":  "Derive the most relevant search keywords for the document text.",
}

const genericInstruction = "Process the document content as requested."

// Agents bundles a completion client with per-task prompting. One Agents
// value is bound per AI transformer node at compile time.
type Agents struct {
	client CompletionClient
}

// NewAgents binds a completion client.
func NewAgents(client CompletionClient) *Agents {
	return &Agents{client: client}
}

// Run executes one task against the content. An override prompt replaces the
// built-in task instruction entirely.
func (a *Agents) Run(ctx context.Context, task, overridePrompt, content string) (string, error) {
	instructions := overridePrompt
	if instructions == "" {
		var ok bool
		if instructions, ok = taskInstructions[task]; !ok {
			instructions = genericInstruction
		}
	}

	out, err := a.client.Complete(ctx, CompletionRequest{
		Instructions: instructions,
		Prompt:       content,
	})
	if err != nil {
		return "", fmt.Errorf("run %q agent: %w", task, err)
	}
	return out, nil
}
