// Package notify escalates trading events to operator channels. Alerts are
// fanned out to every configured sender (Telegram, Discord) and can be
// filtered by event so operators only receive the classes they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event names used by the pipeline when escalating. Configure the allowed
// list with these values.
const (
	EventUnhedgedLeg    = "unhedged_leg"
	EventCircuitBreaker = "circuit_breaker"
	EventDailyLossHalt  = "daily_loss_halt"
)

// Sender is a single delivery channel.
type Sender interface {
	// Send delivers an alert with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel (e.g. "telegram").
	Name() string
}

// Notifier fans an alert out to all senders. When an allowed-event list is
// configured, Notify drops events outside the list; an empty list allows
// everything.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers an alert for the given event to every sender. A failing
// sender does not block the others; failures are combined into one error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
