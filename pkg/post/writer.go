// Package post turns a listing and its photos into a blog post by issuing
// one generation call for the intro, one per photo, and one for the outro.
package post

import (
	"context"
	"log/slog"
	"time"

	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/invoker"
)

// PacingDelay is the pause before each photo after the first.
const PacingDelay = 5 * time.Second

// Writer generates posts with a single invoker, and so a single model.
type Writer struct {
	inv     *invoker.Invoker
	prompts *Prompts
	sleep   invoker.SleepFunc
}

// Option configures a Writer.
type Option func(*Writer)

// WithPrompts replaces the default prompts.
func WithPrompts(p *Prompts) Option {
	return func(w *Writer) { w.prompts = p }
}

// WithSleep replaces the function used for the pacing delay.
func WithSleep(fn invoker.SleepFunc) Option {
	return func(w *Writer) { w.sleep = fn }
}

// NewWriter creates a Writer.
func NewWriter(inv *invoker.Invoker, opts ...Option) *Writer {
	w := &Writer{
		inv:     inv,
		prompts: DefaultPrompts(),
		sleep:   invoker.Sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Model returns the model used for every call.
func (w *Writer) Model() string { return w.inv.Model() }

// Write runs the intro, every image in order, and the outro. Each stage
// records its own failure in its section and the remaining stages still run,
// so the returned post always holds whatever succeeded.
func (w *Writer) Write(ctx context.Context, listing domain.Listing, images []domain.Image, obs Observer) domain.Post {
	post := domain.Post{Model: w.Model()}
	total := len(images)

	obs.emit(Event{Type: EventStageStarted, Stage: domain.StageIntro})
	post.Intro = w.section(ctx, obs, domain.StageIntro, 0, listing, nil)

	post.Images = make([]domain.Section, 0, total)
	for i := range images {
		index := i + 1
		if i > 0 {
			if err := w.sleep(ctx, PacingDelay); err != nil {
				slog.Warn("Pacing delay interrupted", "error", err)
			}
		}
		obs.emit(Event{Type: EventStageStarted, Stage: domain.StageImage, Index: index, Total: total})
		post.Images = append(post.Images, w.section(ctx, obs, domain.StageImage, index, listing, &images[i]))
		obs.emit(Event{
			Type:      EventProgress,
			Stage:     domain.StageImage,
			Index:     index,
			Total:     total,
			Completed: index,
			Fraction:  float64(index) / float64(total),
		})
	}

	obs.emit(Event{Type: EventStageStarted, Stage: domain.StageOutro})
	post.Outro = w.section(ctx, obs, domain.StageOutro, 0, listing, nil)

	obs.emit(Event{Type: EventDone, Post: &post})
	return post
}

func (w *Writer) section(ctx context.Context, obs Observer, stage domain.Stage, index int, listing domain.Listing, img *domain.Image) domain.Section {
	sec := domain.Section{Stage: stage, Index: index}
	if img != nil {
		sec.ImageName = img.Name
	}
	defer func() {
		s := sec
		obs.emit(Event{Type: EventSectionDone, Stage: stage, Index: index, Section: &s})
	}()

	prompt, err := w.prompt(stage, listing)
	if err != nil {
		sec.Error = err.Error()
		return sec
	}
	if img != nil {
		if err := img.Validate(); err != nil {
			sec.Error = err.Error()
			return sec
		}
	}

	inv := w.inv.WithRetryHook(func(attempt, maxAttempts int, wait time.Duration, err error) {
		obs.emit(Event{
			Type:        EventRetry,
			Stage:       stage,
			Index:       index,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Wait:        wait,
		})
	})

	text, err := inv.Invoke(ctx, prompt, img)
	if err != nil {
		slog.Error("Generation failed", "stage", stage, "index", index, "model", w.Model(), "error", err)
		sec.Error = err.Error()
		return sec
	}
	sec.Text = text
	return sec
}

func (w *Writer) prompt(stage domain.Stage, l domain.Listing) (string, error) {
	switch stage {
	case domain.StageIntro:
		return w.prompts.Intro(l)
	case domain.StageImage:
		return w.prompts.Image(l)
	default:
		return w.prompts.Outro(l)
	}
}
