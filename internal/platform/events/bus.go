// Package events is the in-process notification bus for domain events.
// Emission is synchronous and fire-and-forget: subscribers run inside the
// emitting call, and their failures are logged, never returned.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Payload is the structured body of an event.
type Payload map[string]any

// Event is a completed mutation, as delivered to subscribers.
type Event struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Payload    Payload   `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, name string, payload Payload)
}

// Handler receives events from a Bus.
type Handler func(ctx context.Context, ev Event) error

// Sink is a named event transport that can be attached to a Bus.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

type subscription struct {
	pattern string
	name    string
	handle  Handler
}

// Bus dispatches events to subscribers whose pattern matches the event name.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger zerolog.Logger
	now    func() time.Time
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger: logger.With().Str("component", "events").Logger(),
		now:    time.Now,
	}
}

// Subscribe registers h for events matching pattern. A pattern is an exact
// event name, a "prefix.*" wildcard, or "*" for everything.
func (b *Bus) Subscribe(pattern string, h Handler) {
	b.add(subscription{pattern: pattern, name: "handler", handle: h})
}

// Attach registers a sink for events matching pattern.
func (b *Bus) Attach(pattern string, s Sink) {
	b.add(subscription{pattern: pattern, name: s.Name(), handle: s.Handle})
}

func (b *Bus) add(s subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Emit delivers the event to every matching subscriber in registration order.
func (b *Bus) Emit(ctx context.Context, name string, payload Payload) {
	ev := Event{
		ID:         uuid.NewString(),
		Name:       name,
		Payload:    payload,
		OccurredAt: b.now().UTC(),
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if Match(s.pattern, name) {
			b.dispatch(ctx, s, ev)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, s subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", ev.Name).
				Str("event_id", ev.ID).
				Str("subscriber", s.name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("event subscriber panicked")
		}
	}()

	if err := s.handle(ctx, ev); err != nil {
		b.logger.Warn().Err(err).
			Str("event", ev.Name).
			Str("event_id", ev.ID).
			Str("subscriber", s.name).
			Msg("event delivery failed")
	}
}

// Match reports whether an event name satisfies a subscription pattern.
func Match(pattern, name string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == name
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(context.Context, string, Payload) {}
