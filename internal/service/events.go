// Package service coordinates the settlement engine with persistence,
// caching, event delivery, and notifications. Services own the write path:
// every engine mutation is persisted to the stores, broadcast on the signal
// bus, and recorded in the audit log before the call returns.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/omenmarkets/omen/internal/domain"
	"github.com/omenmarkets/omen/internal/notify"
)

// EventStream is the durable Redis stream every engine event is appended to.
const EventStream = "events"

// eventChannel returns the pub/sub channel for one event type. Subscribers
// can use the pattern "events:*" to receive everything.
func eventChannel(t domain.EventType) string {
	return "events:" + string(t)
}

// EventSink fans engine events out to the signal bus, the audit log, and the
// operator notifier. Delivery is best-effort: failures are logged, never
// propagated, so a flaky sink cannot roll back a settled ledger mutation.
type EventSink struct {
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	logger   *slog.Logger
}

// NewEventSink creates an EventSink. bus, audit, and notifier may each be nil
// when the corresponding sink is not configured.
func NewEventSink(bus domain.SignalBus, audit domain.AuditStore, notifier *notify.Notifier, logger *slog.Logger) *EventSink {
	return &EventSink{
		bus:      bus,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "event_sink")),
	}
}

// Emit delivers the given events to every configured sink.
func (s *EventSink) Emit(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.ErrorContext(ctx, "marshal event failed",
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if s.bus != nil {
			if err := s.bus.Publish(ctx, eventChannel(ev.Type), payload); err != nil {
				s.logger.WarnContext(ctx, "publish event failed",
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
			if err := s.bus.StreamAppend(ctx, EventStream, payload); err != nil {
				s.logger.WarnContext(ctx, "stream append failed",
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}

		if s.audit != nil {
			if err := s.audit.Log(ctx, string(ev.Type), eventDetail(ev)); err != nil {
				s.logger.WarnContext(ctx, "audit log failed",
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}

		if s.notifier != nil {
			title, message := describeEvent(ev)
			if err := s.notifier.Notify(ctx, string(ev.Type), title, message); err != nil {
				s.logger.WarnContext(ctx, "notify failed",
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// eventDetail flattens an event into the audit log's detail map.
func eventDetail(ev domain.Event) map[string]any {
	detail := map[string]any{
		"market_id": ev.MarketID,
	}
	if ev.Account != "" {
		detail["account"] = ev.Account
	}
	if ev.Option >= 0 {
		detail["option"] = ev.Option
	}
	if len(ev.Winners) > 0 {
		detail["winners"] = ev.Winners
	}
	if ev.Amount != 0 {
		detail["amount"] = ev.Amount
	}
	if ev.Shares != 0 {
		detail["shares"] = ev.Shares
	}
	if ev.Reason != "" {
		detail["reason"] = ev.Reason
		detail["kind"] = string(ev.Kind)
	}
	return detail
}

// describeEvent renders an operator-facing notification for an event.
func describeEvent(ev domain.Event) (title, message string) {
	title = fmt.Sprintf("omen: %s", ev.Type)
	switch ev.Type {
	case domain.EventMarketResolved:
		message = fmt.Sprintf("market %s resolved, winners %v, payout pool %d", ev.MarketID, ev.Winners, ev.Amount)
	case domain.EventMarketCancelled:
		message = fmt.Sprintf("market %s cancelled by %s", ev.MarketID, ev.Account)
	case domain.EventResolutionDisputed:
		message = fmt.Sprintf("market %s resolution disputed by %s, bond %d", ev.MarketID, ev.Account, ev.Amount)
	case domain.EventResolutionSettled:
		message = fmt.Sprintf("market %s resolution settled, winners %v, bonds %d to %s", ev.MarketID, ev.Winners, ev.Amount, ev.Account)
	default:
		message = fmt.Sprintf("market %s account %s amount %d", ev.MarketID, ev.Account, ev.Amount)
	}
	return title, message
}
