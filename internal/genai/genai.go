// Package genai provides LLM-backed structured extraction using the OpenAI API.
//
// Extraction is best-effort by contract: it may return a partial or empty
// mapping, and it may fail. Callers are expected to catch errors and fall
// back to deterministic heuristics.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ClientInterface is the extraction capability consumed by flow validators.
// Implementations must not guarantee schema conformance; callers check key
// presence and type before use.
type ClientInterface interface {
	// ExtractStructured extracts fields described by a JSON-schema-like
	// mapping from free-form text. Instructions may be empty.
	ExtractStructured(ctx context.Context, schema map[string]any, text, instructions string) (map[string]any, error)
}

// Client wraps the OpenAI chat completion service for structured extraction.
type Client struct {
	client openai.Client
	model  shared.ChatModel
}

// NewClient initializes a client using the OPENAI_API_KEY environment variable.
func NewClient() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	return NewClientWithKey(apiKey, ""), nil
}

// NewClientWithKey initializes a client with an explicit API key and model.
// An empty model selects the default extraction model.
func NewClientWithKey(apiKey string, model string) *Client {
	m := shared.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT4oMini
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

const extractionSystemPrompt = "You extract structured data from a user's message. " +
	"Respond with a single JSON object that conforms to the provided schema. " +
	"Omit any field you cannot determine from the message. Never invent values."

// ExtractStructured runs a JSON-mode chat completion and parses the result.
func (c *Client) ExtractStructured(ctx context.Context, schema map[string]any, text, instructions string) (map[string]any, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction schema: %w", err)
	}

	systemPrompt := fmt.Sprintf("%s\n\nSchema:\n%s", extractionSystemPrompt, schemaJSON)
	if instructions != "" {
		systemPrompt += "\n\n" + instructions
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		slog.Error("genai.ExtractStructured: completion failed", "error", err)
		return nil, fmt.Errorf("extraction completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction returned no choices")
	}

	result, err := ParseExtraction(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("genai.ExtractStructured: unparseable extraction output", "error", err)
		return nil, err
	}
	slog.Debug("genai.ExtractStructured: extraction succeeded", "fields", len(result))
	return result, nil
}

// ParseExtraction parses LLM output into a flat mapping. Strict JSON is
// tried first; malformed output goes through jsonrepair before giving up.
func ParseExtraction(raw string) (map[string]any, error) {
	var result map[string]any
	if err := json.Unmarshal([]byte(raw), &result); err == nil {
		return result, nil
	}

	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("extraction output is not valid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, fmt.Errorf("repaired extraction output is not a JSON object: %w", err)
	}
	return result, nil
}
