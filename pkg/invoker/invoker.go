// Package invoker issues generation calls against a fixed model, retrying
// calls that fail because of rate limiting.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/model"
)

const (
	// MaxAttempts is the number of calls made for one request.
	MaxAttempts = 3
	// RetryDelay is the fixed wait after a rate-limited call.
	RetryDelay = 20 * time.Second
)

// ErrRetriesExhausted is returned when every attempt was rate limited.
var ErrRetriesExhausted = errors.New("sorry, the AI is not responding right now")

// Generator is the part of model.Provider the invoker needs.
type Generator interface {
	Generate(ctx context.Context, modelName string, req model.Request) (string, error)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryHook is called before each rate-limit wait, including the one after
// the final attempt.
type RetryHook func(attempt, maxAttempts int, wait time.Duration, err error)

// Invoker wraps a Generator bound to one model.
type Invoker struct {
	gen       Generator
	modelName string
	sleep     SleepFunc
	onRetry   RetryHook
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithSleep replaces the function used to wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(i *Invoker) { i.sleep = fn }
}

// WithRetryHook sets the hook called before each wait.
func WithRetryHook(fn RetryHook) Option {
	return func(i *Invoker) { i.onRetry = fn }
}

// New creates an Invoker that sends every request to modelName.
func New(gen Generator, modelName string, opts ...Option) *Invoker {
	i := &Invoker{
		gen:       gen,
		modelName: modelName,
		sleep:     Sleep,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Model returns the model every request is sent to.
func (i *Invoker) Model() string { return i.modelName }

// WithRetryHook returns a copy of i that reports waits to fn. The model is
// unchanged.
func (i *Invoker) WithRetryHook(fn RetryHook) *Invoker {
	c := *i
	c.onRetry = fn
	return &c
}

// Invoke generates text for prompt, attaching image when non-nil.
//
// Every rate-limited call is followed by a RetryDelay wait, up to MaxAttempts
// calls in total. When all of them are rate limited ErrRetriesExhausted is
// returned after the last wait. Any other error is returned immediately.
func (i *Invoker) Invoke(ctx context.Context, prompt string, image *domain.Image) (string, error) {
	req := model.Request{Prompt: prompt, Image: image}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		text, err := i.gen.Generate(ctx, i.modelName, req)
		if err == nil {
			return text, nil
		}
		if !IsRateLimit(err) {
			return "", err
		}

		slog.Warn("Rate limited", "model", i.modelName, "attempt", attempt, "maxAttempts", MaxAttempts, "error", err)
		if i.onRetry != nil {
			i.onRetry(attempt, MaxAttempts, RetryDelay, err)
		}
		if err := i.sleep(ctx, RetryDelay); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w (%d attempts)", ErrRetriesExhausted, MaxAttempts)
}

// IsRateLimit reports whether err looks like a rate-limit or quota failure.
// Only the error text is inspected: a "429" status or the word "quota".
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota")
}

// Sleep waits for d. It returns early with ctx.Err() if ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
