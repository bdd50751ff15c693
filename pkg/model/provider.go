package model

import (
	"context"
	"strings"

	"github.com/nstogner/listingwriter/pkg/domain"
)

// Request is a single generation call: a prompt plus an optional image.
type Request struct {
	Prompt string
	// Image is attached after the prompt when non-nil.
	Image *domain.Image
}

// Provider represents a service that provides LLMs (e.g. Gemini).
type Provider interface {
	// Name returns the provider's identifier (e.g. "gemini").
	Name() string

	// List returns the models the configured credentials can access.
	List(ctx context.Context) ([]domain.Model, error)

	// Generate sends one request to modelName and returns the generated text.
	// Provider errors are returned as-is so callers can inspect their text.
	Generate(ctx context.Context, modelName string, req Request) (string, error)
}

// TrimModelPrefix strips the "models/" resource prefix the Gemini API puts on
// model names.
func TrimModelPrefix(name string) string {
	return strings.TrimPrefix(name, "models/")
}
