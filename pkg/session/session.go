// Package session ties one API key to one resolved model for the lifetime of
// a front-end run.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nstogner/listingwriter/pkg/config"
	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/invoker"
	"github.com/nstogner/listingwriter/pkg/model"
	"github.com/nstogner/listingwriter/pkg/model/gemini"
	"github.com/nstogner/listingwriter/pkg/model/generativeai"
	"github.com/nstogner/listingwriter/pkg/post"
	"github.com/nstogner/listingwriter/pkg/resolver"
)

// Session is a resolved model plus the writer bound to it. The model never
// changes for the life of the session.
type Session struct {
	ID         string
	Provider   model.Provider
	Resolution resolver.Resolution
	Writer     *post.Writer
}

// Options configures New.
type Options struct {
	Candidates    []string
	FallbackModel string
	Prompts       post.PromptSet
	// Sleep replaces the retry and pacing waits. Nil uses invoker.Sleep.
	Sleep invoker.SleepFunc
}

// OptionsFromConfig copies the session settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Candidates:    cfg.Candidates,
		FallbackModel: cfg.FallbackModel,
		Prompts:       cfg.Prompts,
	}
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(ctx context.Context, cfg *config.Config, apiKey string) (model.Provider, error) {
	switch cfg.Provider {
	case generativeai.ProviderName:
		return generativeai.New(ctx, apiKey)
	case gemini.ProviderName, "":
		return gemini.New(ctx, apiKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// Open creates the configured provider for apiKey and resolves a model.
func Open(ctx context.Context, cfg *config.Config, apiKey string) (*Session, error) {
	provider, err := NewProvider(ctx, cfg, apiKey)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, provider, OptionsFromConfig(cfg))
	if err != nil {
		closeProvider(provider)
		return nil, err
	}
	return s, nil
}

// New resolves a model on provider and prepares the writer. A resolution
// failure is returned and no session is created.
func New(ctx context.Context, provider model.Provider, opts Options) (*Session, error) {
	prompts, err := post.NewPrompts(opts.Prompts)
	if err != nil {
		return nil, err
	}

	res, err := resolver.New(provider, opts.Candidates, opts.FallbackModel).Resolve(ctx)
	if err != nil {
		return nil, err
	}

	var invOpts []invoker.Option
	writerOpts := []post.Option{post.WithPrompts(prompts)}
	if opts.Sleep != nil {
		invOpts = append(invOpts, invoker.WithSleep(opts.Sleep))
		writerOpts = append(writerOpts, post.WithSleep(opts.Sleep))
	}
	inv := invoker.New(provider, res.Model, invOpts...)

	s := &Session{
		ID:         uuid.New().String(),
		Provider:   provider,
		Resolution: res,
		Writer:     post.NewWriter(inv, writerOpts...),
	}
	slog.Info("Session opened", "sessionID", s.ID, "provider", provider.Name(), "model", res.Model, "confirmed", res.Confirmed)
	return s, nil
}

// Write generates a post with the session's model.
func (s *Session) Write(ctx context.Context, listing domain.Listing, images []domain.Image, obs post.Observer) domain.Post {
	slog.Info("Writing post", "sessionID", s.ID, "model", s.Resolution.Model, "images", len(images))
	return s.Writer.Write(ctx, listing, images, obs)
}

// Close releases the provider.
func (s *Session) Close() error {
	return closeProvider(s.Provider)
}

func closeProvider(p model.Provider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
