package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// testClient connects to NFTMART_TEST_REDIS_ADDR; tests skip when unset.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("NFTMART_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NFTMART_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeys(t *testing.T) {
	who := common.HexToAddress("0x01")
	assert.Equal(t, "nftmart:lock:archive", lockKey("archive"))
	assert.Equal(t, "nftmart:ratelimit:1.2.3.4", rateLimitKey("1.2.3.4"))
	assert.Equal(t, "nftmart:nonce:"+who.Hex()+":n1", nonceKey(who, "n1"))
}

func TestLockManager(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	lm := NewLockManager(c)
	key := "test-" + uuid.NewString()

	unlock, err := lm.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	again, err := lm.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	again()
}

func TestRateLimiter(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)
	key := "test-" + uuid.NewString()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplayGuard(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	g := NewReplayGuard(c)
	who := common.HexToAddress("0xabc")
	nonce := uuid.NewString()

	ok, err := g.Claim(ctx, who, nonce, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, who, nonce, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignalBusStream(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	sb := NewSignalBus(c)
	stream := "test:" + uuid.NewString()
	t.Cleanup(func() { c.Underlying().Del(context.Background(), stream) })

	msgs, err := sb.StreamRead(ctx, stream, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, sb.StreamAppend(ctx, stream, []byte(`{"kind":"TakenOrder"}`)))
	msgs, err = sb.StreamRead(ctx, stream, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"kind":"TakenOrder"}`, string(msgs[0].Payload))
}

func TestSignalBusPubSub(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sb := NewSignalBus(c)
	channel := "test:" + uuid.NewString()

	sub, err := sb.Subscribe(ctx, channel)
	require.NoError(t, err)
	require.NoError(t, sb.Publish(ctx, channel, []byte("hello")))

	select {
	case got := <-sub:
		assert.Equal(t, "hello", string(got))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}
