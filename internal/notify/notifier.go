// Package notify delivers operator alerts for settlement events. A Notifier
// fans each alert out to every configured channel and can be restricted to a
// subset of event types so an on-call operator is only paged for disputes,
// resolutions, or whatever else they opted into.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender posts one alert to a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs and error messages.
	Name() string
}

// Notifier fans alerts out to its senders, filtered by event type. An empty
// filter admits every event.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier builds a Notifier over the given senders. Events not listed in
// events are dropped; a nil or empty slice disables filtering.
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

// Notify delivers the alert to every sender whose filter admits the event
// type. One failing channel does not stop delivery to the others; all
// failures come back as a single combined error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allowed) > 0 && !n.allowed[event] {
		n.logger.DebugContext(ctx, "alert suppressed by event filter",
			slog.String("event", event),
		)
		return nil
	}

	var failed []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("channel", s.Name()),
				slog.String("error", err.Error()),
			)
			failed = append(failed, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("channel", s.Name()),
			slog.String("event", event),
		)
	}
	if len(failed) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(failed, "; "))
	}
	return nil
}
