package store

import (
	"context"
	"time"

	"ticket-engine/models"
)

// Backend identifies a store implementation.
type Backend string

const (
	BackendPocketBase Backend = "pocketbase"
	BackendMemory     Backend = "memory"
)

// Reservation is a capacity claim handed out by ReserveCapacity. It must be
// either committed by a ticket insert or returned via ReleaseCapacity.
type Reservation struct {
	EventID  string
	Quantity int
}

// Store is the durable record layer. Implementations must make the three
// guarded mutations (ReserveCapacity, the promo consume inside CreateTicket,
// MarkTicketUsed) atomic with respect to concurrent callers.
type Store interface {
	// Events
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	GetEventByKey(ctx context.Context, eventKey string) (*models.Event, error)

	// Capacity ledger. ReserveCapacity increments sold_tickets only if the
	// event is active and qty still fits; ReleaseCapacity is the compensating
	// decrement, floored at zero.
	ReserveCapacity(ctx context.Context, eventID string, qty int) (*Reservation, error)
	ReleaseCapacity(ctx context.Context, res *Reservation) error

	// Promo codes. Code lookups are exact on the upper-cased code.
	GetPromo(ctx context.Context, eventID, code string) (*models.PromoCode, error)
	CreatePromo(ctx context.Context, promo *models.PromoCode) error
	ListPromos(ctx context.Context, eventID string) ([]*models.PromoCode, error)
	SetPromoActive(ctx context.Context, promoID string, active bool) error
	DeletePromo(ctx context.Context, promoID string) error

	// Tickets. CreateTicket enforces seat exclusivity, consumes promoID
	// (when non-empty) and inserts the ticket in one transaction, so a
	// consumed promo slot can never outlive a failed insert and no two
	// tickets can ever hold the same seat. MarkTicketUsed is the
	// valid->used test-and-set; it returns false with a nil error when the
	// ticket was not in state valid.
	CreateTicket(ctx context.Context, t *models.Ticket, promoID string) error
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	MarkTicketUsed(ctx context.Context, ticketID string, usedAt time.Time) (bool, error)
	CountUsedTickets(ctx context.Context, eventID string) (int, error)

	// OccupiedSeats returns seat ids held by valid or used tickets.
	OccupiedSeats(ctx context.Context, eventID string) (map[string]bool, error)

	// Gates
	CreateGate(ctx context.Context, gate *models.Gate) error
	GetGate(ctx context.Context, gateID string) (*models.Gate, error)
	ListGates(ctx context.Context, eventID string) ([]*models.Gate, error)
	SetGateActive(ctx context.Context, gateID string, active bool) error
}
