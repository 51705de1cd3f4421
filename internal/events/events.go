// Package events publishes domain events after their transaction commits.
// Delivery is best effort: a failed publish is logged by the caller and
// never undoes a committed write.
package events

import (
	"context"
	"sync"
	"time"
)

// Event types, also used as AMQP routing keys.
const (
	RatingCreated = "rating.created"
	RatingUpdated = "rating.updated"
	RatingDeleted = "rating.deleted"
	ReviewCreated = "review.created"
	ReviewUpdated = "review.updated"
	ReviewDeleted = "review.deleted"
	UserDeleted   = "user.deleted"
)

// Aggregate is the movie rating summary after the change.
type Aggregate struct {
	Count   int64 `json:"ratingCount"`
	Sum     int64 `json:"ratingSum"`
	Average int64 `json:"ratingAverage"`
}

// Event is the payload sent to subscribers.
type Event struct {
	Type       string     `json:"type"`
	UserID     string     `json:"userId,omitempty"`
	MovieID    string     `json:"movieId,omitempty"`
	TMDBID     string     `json:"tmdbId,omitempty"`
	ResourceID string     `json:"resourceId,omitempty"`
	Aggregate  *Aggregate `json:"aggregate,omitempty"`
	// MoviesTouched lists movies whose aggregate changed, for user.deleted.
	MoviesTouched []string  `json:"moviesTouched,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
