package services

import (
	"context"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"ticket-engine/utils"
)

// Notifier publishes engine events for external consumers (organizer
// dashboards, scanner UIs). Publishing is fire-and-forget; the engine never
// blocks a sale or a scan on it.
type Notifier interface {
	TicketIssued(ctx context.Context, eventKey, ticketID string, quantity int)
	TicketRedeemed(ctx context.Context, eventKey, ticketID, gateID string)
	PurchaseExpired(ctx context.Context, eventKey, purchaseID string)
}

// PubNubNotifier publishes to per-event PubNub channels behind a circuit
// breaker, so a PubNub outage degrades to dropped notifications instead of
// slow requests.
type PubNubNotifier struct {
	PubNub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{
		PubNub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub-publisher"),
	}
}

func (n *PubNubNotifier) publish(ctx context.Context, channel string, message map[string]any) {
	_, err := n.breaker.Execute(ctx, func() (interface{}, error) {
		_, status, err := n.PubNub.Publish().
			Channel(channel).
			Message(message).
			Execute()
		if err != nil {
			return nil, err
		}
		return status, nil
	})
	if err != nil {
		slog.Warn("dropped realtime notification", "channel", channel, "error", err)
	}
}

func (n *PubNubNotifier) TicketIssued(ctx context.Context, eventKey, ticketID string, quantity int) {
	n.publish(ctx, "event-"+eventKey, map[string]any{
		"type":      "ticket_issued",
		"ticket_id": ticketID,
		"quantity":  quantity,
	})
}

func (n *PubNubNotifier) TicketRedeemed(ctx context.Context, eventKey, ticketID, gateID string) {
	n.publish(ctx, "event-"+eventKey, map[string]any{
		"type":      "ticket_redeemed",
		"ticket_id": ticketID,
		"gate_id":   gateID,
	})
}

func (n *PubNubNotifier) PurchaseExpired(ctx context.Context, eventKey, purchaseID string) {
	n.publish(ctx, "event-"+eventKey, map[string]any{
		"type":        "purchase_expired",
		"purchase_id": purchaseID,
	})
}

// NopNotifier drops everything. Used by tests and the memory deployment
// when PubNub keys are not configured.
type NopNotifier struct{}

func (NopNotifier) TicketIssued(ctx context.Context, eventKey, ticketID string, quantity int) {}
func (NopNotifier) TicketRedeemed(ctx context.Context, eventKey, ticketID, gateID string)     {}
func (NopNotifier) PurchaseExpired(ctx context.Context, eventKey, purchaseID string)          {}
