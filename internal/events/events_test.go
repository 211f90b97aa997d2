package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestFanoutAndRecorder(t *testing.T) {
	var a, b Recorder
	Fanout{&a, &b, Discard{}}.Emit(context.Background(), domain.Event{Kind: domain.EventCreatedOrder})
	assert.Equal(t, []domain.EventKind{domain.EventCreatedOrder}, a.Kinds())
	assert.Len(t, b.Events(), 1)
	a.Reset()
	assert.Empty(t, a.Events())
}

func TestPublisherWritesChannelAndStream(t *testing.T) {
	bus := newFakeBus()
	price := domain.NewBalance(500)
	NewPublisher(bus, discardLogger()).Emit(context.Background(), domain.Event{
		ID:    "ev-1",
		Kind:  domain.EventTakenOrder,
		Price: &price,
	})

	require.Len(t, bus.published[Channel], 1)
	require.Len(t, bus.streamed[Stream], 1)

	var got domain.Event
	require.NoError(t, json.Unmarshal(bus.published[Channel][0], &got))
	assert.Equal(t, domain.EventTakenOrder, got.Kind)
	require.NotNil(t, got.Price)
	assert.Equal(t, "500", got.Price.String())
}

func TestAsyncDropsWhenFull(t *testing.T) {
	var rec Recorder
	a := NewAsync(&rec, 1, discardLogger())
	ctx := context.Background()
	a.Emit(ctx, domain.Event{ID: "1"})
	a.Emit(ctx, domain.Event{ID: "2"})
	assert.Equal(t, uint64(1), a.Dropped())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = a.Run(runCtx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, "1", rec.Events()[0].ID)
}

func TestBlockingAsyncWaitsForRoom(t *testing.T) {
	var rec Recorder
	a := NewBlockingAsync(&rec, 1, discardLogger())
	ctx := context.Background()
	a.Emit(ctx, domain.Event{ID: "1"})

	emitted := make(chan struct{})
	go func() {
		a.Emit(ctx, domain.Event{ID: "2"})
		close(emitted)
	}()
	select {
	case <-emitted:
		t.Fatal("emit returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = a.Run(runCtx)
		close(done)
	}()
	require.Eventually(t, func() bool { return len(rec.Events()) == 2 }, time.Second, 5*time.Millisecond)
	<-emitted
	assert.Zero(t, a.Dropped())

	cancel()
	<-done
	// Once stopped, emits return instead of blocking forever.
	a.Emit(ctx, domain.Event{ID: "3"})
	a.Emit(ctx, domain.Event{ID: "4"})
	assert.Equal(t, uint64(2), a.Dropped())
	require.Len(t, rec.Events(), 2)
	assert.Equal(t, "1", rec.Events()[0].ID)
	assert.Equal(t, "2", rec.Events()[1].ID)
}
