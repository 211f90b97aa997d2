package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

const defaultBuffer = 1024

// Async hands events to a background goroutine so Emit never waits on a
// slow sink. When the buffer is full the event is dropped and counted.
//
// An Async built with NewBlockingAsync waits for room instead and only
// drops events emitted after Run has begun shutting down.
type Async struct {
	next     domain.EventSink
	queue    chan domain.Event
	block    bool
	stop     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64
	logger   *slog.Logger
}

// NewAsync wraps next. A non-positive buffer selects the default size.
func NewAsync(next domain.EventSink, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Async{
		next:   next,
		queue:  make(chan domain.Event, buffer),
		stop:   make(chan struct{}),
		logger: logger,
	}
}

// NewBlockingAsync is NewAsync with backpressure: Emit blocks while the
// buffer is full.
func NewBlockingAsync(next domain.EventSink, buffer int, logger *slog.Logger) *Async {
	a := NewAsync(next, buffer, logger)
	a.block = true
	return a
}

func (a *Async) Emit(ctx context.Context, ev domain.Event) {
	if a.block {
		if !a.stopped() {
			select {
			case a.queue <- ev:
				return
			case <-a.stop:
			}
		}
	} else {
		select {
		case a.queue <- ev:
			return
		default:
		}
	}
	n := a.dropped.Add(1)
	a.logger.WarnContext(ctx, "events: queue full, event dropped",
		slog.String("event_id", ev.ID),
		slog.Bool("stopped", a.stopped()),
		slog.Uint64("dropped_total", n),
	)
}

func (a *Async) stopped() bool {
	select {
	case <-a.stop:
		return true
	default:
		return false
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Run delivers queued events until ctx is cancelled, then drains what is
// already queued.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-a.queue:
			a.next.Emit(ctx, ev)
		case <-ctx.Done():
			a.stopOnce.Do(func() { close(a.stop) })
			drain := context.WithoutCancel(ctx)
			for {
				select {
				case ev := <-a.queue:
					a.next.Emit(drain, ev)
				default:
					return nil
				}
			}
		}
	}
}
