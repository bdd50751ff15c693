// Package resolver picks the model a session will use from a ranked list of
// candidates and the models the caller's credentials can access.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/model"
)

// FallbackModel is used when no candidate is listed as available. It is not
// confirmed to work; the first generation call will tell.
const FallbackModel = "gemini-1.5-flash-001"

// DefaultCandidates is the candidate list, most preferred first.
var DefaultCandidates = []string{
	"gemini-1.5-flash-001",
	"gemini-1.5-flash-002",
	"gemini-1.5-flash-latest",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b",
	"gemini-2.0-flash-exp",
}

// Lister is the part of model.Provider the resolver needs.
type Lister interface {
	List(ctx context.Context) ([]domain.Model, error)
}

// Resolution is the model chosen for a session.
type Resolution struct {
	Model string `json:"model"`
	// Confirmed is false when Model is the fallback and was not listed.
	Confirmed bool `json:"confirmed"`
}

// Resolver selects one model per session.
type Resolver struct {
	lister     Lister
	candidates []string
	fallback   string
}

// New creates a Resolver. Empty candidates or fallback select the defaults.
func New(lister Lister, candidates []string, fallback string) *Resolver {
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}
	if fallback == "" {
		fallback = FallbackModel
	}
	return &Resolver{lister: lister, candidates: candidates, fallback: fallback}
}

// Resolve lists the available models once and selects from them. A listing
// failure (bad key, network) is returned and no model is produced.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	models, err := r.lister.List(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to list models: %w", err)
	}

	available := make([]string, 0, len(models))
	for _, m := range models {
		available = append(available, m.ID)
	}

	res := Select(r.candidates, available, r.fallback)
	if res.Confirmed {
		slog.Info("Resolved model", "model", res.Model, "available", len(available))
	} else {
		slog.Warn("No candidate model available, using fallback", "model", res.Model, "available", len(available))
	}
	return res, nil
}

// Select returns the first candidate present in available, or fallback.
func Select(candidates, available []string, fallback string) Resolution {
	set := make(map[string]struct{}, len(available))
	for _, id := range available {
		set[model.TrimModelPrefix(id)] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := set[model.TrimModelPrefix(c)]; ok {
			return Resolution{Model: c, Confirmed: true}
		}
	}
	return Resolution{Model: fallback}
}
