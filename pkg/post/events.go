package post

import (
	"time"

	"github.com/nstogner/listingwriter/pkg/domain"
)

// EventType identifies a progress event.
type EventType string

const (
	EventStageStarted EventType = "stage_started"
	EventSectionDone  EventType = "section_done"
	EventProgress     EventType = "progress"
	EventRetry        EventType = "retry"
	EventDone         EventType = "done"
)

// Event reports progress of a Write call to the front end.
type Event struct {
	Type  EventType    `json:"type"`
	Stage domain.Stage `json:"stage,omitempty"`
	// Index is 1-based for image stages.
	Index int `json:"index,omitempty"`
	Total int `json:"total,omitempty"`

	Section *domain.Section `json:"section,omitempty"`

	// Completed and Fraction are set on progress events.
	Completed int     `json:"completed,omitempty"`
	Fraction  float64 `json:"fraction,omitempty"`

	// Attempt, MaxAttempts and Wait are set on retry events.
	Attempt     int           `json:"attempt,omitempty"`
	MaxAttempts int           `json:"max_attempts,omitempty"`
	Wait        time.Duration `json:"wait,omitempty"`

	Post *domain.Post `json:"post,omitempty"`
}

// Observer receives events. It is called synchronously from Write.
type Observer func(Event)

func (o Observer) emit(e Event) {
	if o != nil {
		o(e)
	}
}
