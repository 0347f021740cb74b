package events

import (
	"context"
	"sync"

	"dpp-certification/internal/domain"
)

// Publisher announces committed state changes. Publishing happens after the
// owning transaction commits, so a failure here never undoes a transition.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type noopPublisher struct{}

// NewNoop returns a Publisher that drops every event
func NewNoop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, domain.Event) error {
	return nil
}

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}
