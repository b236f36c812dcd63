package analyzer

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/debugops/debugops/internal/incidents"
)

// geminiClient calls the Gemini API with a JSON response schema
type geminiClient struct {
	client *genai.Client
	model  string
}

func newGeminiClient(ctx context.Context, cfg Config) (*geminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiClient{client: client, model: cfg.Model}, nil
}

func (c *geminiClient) Name() string {
	return engineName(ProviderGoogle, c.model)
}

func (c *geminiClient) Analyze(ctx context.Context, message, detail, sourceLabel string) (*incidents.PatchSolution, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(Prompt(message, detail, sourceLabel)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiSchema(),
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return ParseSolution(text)
}

func geminiSchema() *genai.Schema {
	str := func(key string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: fieldDescriptions[key]}
	}
	list := func(key string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: fieldDescriptions[key],
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"root_cause":      str("root_cause"),
			"severity":        str("severity"),
			"files_to_modify": list("files_to_modify"),
			"patch":           str("patch"),
			"explanation":     str("explanation"),
			"next_steps":      list("next_steps"),
		},
		Required: requiredFields,
	}
}
