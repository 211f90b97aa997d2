package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// streamMaxLen caps streams approximately via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// SignalBus implements domain.SignalBus. Pub/Sub carries the live event feed
// to every replica's WebSocket hub; the stream keeps a bounded replay log.
type SignalBus struct {
	rdb *redis.Client
}

func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads closed when ctx ends. Channel names
// containing glob characters use PSUBSCRIBE.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		in := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" for the start).
// An empty stream yields nil, nil.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var out []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			var data []byte
			switch v := msg.Values["payload"].(type) {
			case string:
				data = []byte(v)
			case []byte:
				data = v
			default:
				continue
			}
			out = append(out, domain.StreamMessage{ID: msg.ID, Payload: data})
		}
	}
	return out, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
