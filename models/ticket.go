package models

import (
	"encoding/json"
	"time"

	"ticket-engine/internal/status"
)

// Ticket statuses.
const (
	TicketStatusValid = "valid"
	TicketStatusUsed  = "used"
)

type Ticket struct {
	ID                 string     `json:"id"`
	TicketID           string     `json:"ticket_id"` // unguessable public identifier
	EventID            string     `json:"event_id"`
	EventKey           string     `json:"event_key"`
	OwnerEmail         string     `json:"owner_email"`
	Quantity           int        `json:"quantity"`
	SeatIDs            []string   `json:"seat_ids,omitempty"`
	UnitPrice          float64    `json:"unit_price"`
	DiscountPercentage float64    `json:"discount_percentage"`
	TotalPrice         float64    `json:"total_price"`
	Status             string     `json:"status"` // valid, used
	PromoCode          string     `json:"promo_code,omitempty"`
	PaymentRef         string     `json:"payment_ref,omitempty"`
	PurchasedAt        time.Time  `json:"purchased_at"`
	UsedAt             *time.Time `json:"used_at,omitempty"`
}

// QRPayload is the document encoded into a ticket's QR code. Scanner clients
// send it back verbatim on validation.
type QRPayload struct {
	TicketID string `json:"ticketId"`
	EventKey string `json:"eventKey"`
}

// QRPayload renders the scannable payload for this ticket.
func (t *Ticket) QRPayload() string {
	b, _ := json.Marshal(QRPayload{TicketID: t.TicketID, EventKey: t.EventKey})
	return string(b)
}

// ParseQRPayload decodes a scanned payload. Anything malformed or missing a
// field is rejected before any lookup happens.
func ParseQRPayload(raw string) (QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return QRPayload{}, status.ErrTicketNotFound
	}
	if p.TicketID == "" || p.EventKey == "" {
		return QRPayload{}, status.ErrTicketNotFound
	}
	return p, nil
}
