package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/model"
	"google.golang.org/genai"
)

// ProviderName identifies this provider in config and model listings.
const ProviderName = "gemini"

// Provider implements model.Provider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// List returns every model visible to the API key, with its supported actions.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		slog.Debug("Found Gemini model", "name", m.Name)
		models = append(models, domain.Model{
			ID:               model.TrimModelPrefix(m.Name),
			Name:             m.DisplayName,
			Provider:         ProviderName,
			MaxTokens:        int(m.InputTokenLimit),
			SupportedActions: m.SupportedActions,
		})
	}
	return models, nil
}

// Generate sends the prompt, and the image if present, in a single user turn.
func (p *Provider) Generate(ctx context.Context, modelName string, req model.Request) (string, error) {
	slog.Debug("Gemini.Generate", "model", modelName, "hasImage", req.Image != nil)

	parts := []*genai.Part{{Text: req.Prompt}}
	if req.Image != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.Image.MIMEType,
				Data:     req.Image.Data,
			},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := p.client.Models.GenerateContent(ctx, modelName, contents, nil)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from model")
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		// Only the first candidate is rendered.
		break
	}
	if sb.Len() == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", fb.BlockReason)
		}
		return "", errors.New("model returned no text")
	}
	return sb.String(), nil
}
