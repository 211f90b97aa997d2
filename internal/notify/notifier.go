// Package notify sends operator alerts for market events to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// Sender delivers one message to a channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// sendTimeout bounds one fan-out of an event.
const sendTimeout = 15 * time.Second

// Notifier is a domain.EventSink that forwards selected event kinds to every
// sender. It makes network calls, so wire it behind events.Async.
type Notifier struct {
	senders []Sender
	kinds   map[domain.EventKind]bool
	logger  *slog.Logger
}

// NewNotifier forwards events whose kind is listed. An empty list selects
// the settlement kinds (see domain.Event.Settled).
func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	set := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			set[domain.EventKind(k)] = true
		}
	}
	return &Notifier{
		senders: senders,
		kinds:   set,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

func (n *Notifier) wants(ev domain.Event) bool {
	if len(n.kinds) == 0 {
		return ev.Settled()
	}
	return n.kinds[ev.Kind]
}

// Emit implements domain.EventSink.
func (n *Notifier) Emit(ctx context.Context, ev domain.Event) {
	if !n.wants(ev) {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()
	title, body := Format(ev)
	if err := n.dispatch(ctx, title, body); err != nil {
		n.logger.WarnContext(ctx, "notify: delivery failed",
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// dispatch sends to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notify: sent", slog.String("sender", s.Name()), slog.String("title", title))
	}
	return errors.Join(errs...)
}

// Format renders an event as a title and a multi-line body.
func Format(ev domain.Event) (string, string) {
	title := fmt.Sprintf("%s #%d", ev.Kind, ev.ListingID)

	var b strings.Builder
	fmt.Fprintf(&b, "account: %s\n", ev.Who.Hex())
	if ev.Counterparty != nil {
		fmt.Fprintf(&b, "counterparty: %s\n", ev.Counterparty.Hex())
	}
	if ev.Price != nil {
		fmt.Fprintf(&b, "price: %s\n", FormatAmount(*ev.Price))
	}
	if c := ev.Commission; c != nil && c.Eligible {
		fmt.Fprintf(&b, "commission: %s to %s\n", FormatRate(c.Rate), c.Agent.Hex())
	}
	fmt.Fprintf(&b, "block: %d", ev.Block)
	return title, b.String()
}

// FormatAmount renders a balance in whole currency units, trimming trailing
// zeros: 1.5e12 smallest units prints as "1.5".
func FormatAmount(v domain.Balance) string {
	return decimal.NewFromBigInt(v.Big(), -12).String()
}

// FormatRate renders a rate as a percentage with two decimals.
func FormatRate(r domain.Rate) string {
	pct := decimal.NewFromInt(int64(r)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(domain.RateOne)))
	return pct.StringFixed(2) + "%"
}
