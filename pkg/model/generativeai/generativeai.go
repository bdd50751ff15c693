// Package generativeai implements model.Provider on top of the legacy
// github.com/google/generative-ai-go SDK. It is kept for API keys and
// environments that still rely on the v1beta REST surface that SDK targets.
package generativeai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	// ProviderName identifies this provider in config and model listings.
	ProviderName = "generativeai"

	// LevelTrace is a custom log level for detailed HTTP traffic.
	LevelTrace = slog.Level(-8)
)

// Provider implements model.Provider using the generative-ai-go client.
type Provider struct {
	client *genai.Client
}

var _ model.Provider = (*Provider)(nil)

// New creates a new Provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	httpClient := &http.Client{
		Transport: &loggingTransport{
			base:   http.DefaultTransport,
			apiKey: apiKey,
		},
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create generativeai client: %w", err)
	}
	return &Provider{client: client}, nil
}

type loggingTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// A custom http.Client bypasses the library's own API key injection.
	if t.apiKey != "" && req.Header.Get("x-goog-api-key") == "" && req.URL.Query().Get("key") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("x-goog-api-key", t.apiKey)
	}

	if !slog.Default().Enabled(req.Context(), LevelTrace) {
		return t.base.RoundTrip(req)
	}

	// Image payloads make request bodies huge; only the headers are dumped.
	reqDump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		slog.Debug("Failed to dump Gemini request", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "Gemini REST Request", "url", req.URL.Redacted(), "dump", redactKey(string(reqDump), t.apiKey))
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respDump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		slog.Debug("Failed to dump Gemini response", "error", err)
	} else {
		slog.Log(req.Context(), LevelTrace, "Gemini REST Response", "status", resp.StatusCode, "dump", string(respDump))
	}

	return resp, nil
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "REDACTED")
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// Close releases resources.
func (p *Provider) Close() error {
	return p.client.Close()
}

// List returns available models.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	iter := p.client.ListModels(ctx)
	var models []domain.Model
	for {
		m, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		slog.Debug("Found Gemini model", "name", m.Name)
		models = append(models, domain.Model{
			ID:               model.TrimModelPrefix(m.Name),
			Name:             m.DisplayName,
			Provider:         ProviderName,
			MaxTokens:        int(m.InputTokenLimit),
			SupportedActions: m.SupportedGenerationMethods,
		})
	}
	return models, nil
}

// Generate sends the prompt, and the image if present, as one request.
func (p *Provider) Generate(ctx context.Context, modelName string, req model.Request) (string, error) {
	slog.Debug("GenerativeAI.Generate", "model", modelName, "hasImage", req.Image != nil)

	gm := p.client.GenerativeModel(modelName)
	parts := []genai.Part{genai.Text(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.Blob{
			MIMEType: req.Image.MIMEType,
			Data:     req.Image.Data,
		})
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("model returned no candidates")
	}
	var sb strings.Builder
	if c := resp.Candidates[0].Content; c != nil {
		for _, part := range c.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("model returned no text")
	}
	return sb.String(), nil
}
