// Package events fans committed market events out to the log, the signal
// bus, the durable event store and notifiers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

const (
	// Channel is the pub/sub channel every market event is published on.
	Channel = "ch:market"
	// Stream is the durable stream every market event is appended to.
	Stream = "stream:market"
)

// Fanout delivers each event to every sink in order.
type Fanout []domain.EventSink

func (f Fanout) Emit(ctx context.Context, ev domain.Event) {
	for _, s := range f {
		s.Emit(ctx, ev)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, domain.Event) {}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Emit(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Kinds returns the recorded event kinds in order.
func (r *Recorder) Kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]domain.EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Publisher publishes events as JSON on the signal bus.
type Publisher struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

func NewPublisher(bus domain.SignalBus, logger *slog.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.ErrorContext(ctx, "events: marshal failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.bus.Publish(ctx, Channel, payload); err != nil {
		p.logger.WarnContext(ctx, "events: publish failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := p.bus.StreamAppend(ctx, Stream, payload); err != nil {
		p.logger.WarnContext(ctx, "events: stream append failed",
			slog.String("event_id", ev.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Journal appends events to the durable event log.
type Journal struct {
	store  domain.EventStore
	logger *slog.Logger
}

func NewJournal(store domain.EventStore, logger *slog.Logger) *Journal {
	return &Journal{store: store, logger: logger}
}

func (j *Journal) Emit(ctx context.Context, ev domain.Event) {
	if err := j.store.Append(ctx, ev); err != nil {
		j.logger.ErrorContext(ctx, "events: journal append failed",
			slog.String("event_id", ev.ID),
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
}
