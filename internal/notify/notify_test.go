package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

type captureSender struct {
	name   string
	err    error
	titles []string
	bodies []string
}

func (c *captureSender) Send(_ context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, message)
	return c.err
}

func (c *captureSender) Name() string { return c.name }

func takenOrder() domain.Event {
	price := domain.Units(3).SaturatingAdd(domain.NewBalance(domain.Accuracy / 2))
	buyer := common.HexToAddress("0xb0b")
	return domain.Event{
		Kind:         domain.EventTakenOrder,
		Block:        42,
		Who:          buyer,
		Counterparty: &buyer,
		ListingID:    7,
		Price:        &price,
		Commission:   &domain.Commission{Eligible: true, Agent: common.HexToAddress("0xda"), Rate: domain.RateFromPercent(10)},
	}
}

func TestFormat(t *testing.T) {
	title, body := Format(takenOrder())
	assert.Equal(t, "TakenOrder #7", title)
	assert.Contains(t, body, "price: 3.5\n")
	assert.Contains(t, body, "commission: 10.00% to ")
	assert.Contains(t, body, "block: 42")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(domain.Balance{}))
	assert.Equal(t, "1", FormatAmount(domain.Units(1)))
	assert.Equal(t, "0.000000000001", FormatAmount(domain.NewBalance(1)))
	assert.Equal(t, "100.00%", FormatRate(domain.RateOne))
	assert.Equal(t, "50.00%", FormatRate(domain.RateFromPercent(50)))
}

func TestNotifierFiltersKinds(t *testing.T) {
	s := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{s}, nil, slog.New(slog.DiscardHandler))

	n.Emit(context.Background(), domain.Event{Kind: domain.EventCreatedOrder})
	assert.Empty(t, s.titles)

	n.Emit(context.Background(), takenOrder())
	assert.Equal(t, []string{"TakenOrder #7"}, s.titles)

	only := &captureSender{name: "only"}
	n = NewNotifier([]Sender{only}, []string{" CreatedOrder "}, slog.New(slog.DiscardHandler))
	n.Emit(context.Background(), takenOrder())
	n.Emit(context.Background(), domain.Event{Kind: domain.EventCreatedOrder, ListingID: 1})
	assert.Equal(t, []string{"CreatedOrder #1"}, only.titles)
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("down")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, slog.New(slog.DiscardHandler))

	err := n.dispatch(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "123")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "123", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}
