package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voltify/voltify/pkg/common"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/types"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiConfig configures the Gemini advisor.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Gemini asks a hosted Gemini model for suggestions, constraining the output
// to {"suggestions": [string]}.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Advisor = (*Gemini)(nil)

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestions": {
			Type:        genai.TypeArray,
			Description: "A list of personalized energy-saving suggestions tailored to the user provided household data.",
			Items:       &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"suggestions"},
}

// NewGemini creates the genai client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: common.HTTPClient(cfg.Timeout),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  cfg.Model,
	}, nil
}

// Suggest renders the household data into the prompt and parses the
// structured response.
func (g *Gemini) Suggest(ctx context.Context, data types.HouseholdData) ([]string, error) {
	prompt, err := renderPrompt(data)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	return parseSuggestions(ctx, resp.Text())
}

func parseSuggestions(ctx context.Context, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidResponse
	}

	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode model output", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	if out.Suggestions == nil {
		return nil, ErrInvalidResponse
	}

	suggestions := make([]string, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions, nil
}
