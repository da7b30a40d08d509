package models

import (
	"time"
)

// Event statuses.
const (
	EventStatusActive    = "active"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

type Event struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Location     string    `json:"location"`
	EventKey     string    `json:"event_key"` // url-safe slug, embedded in QR payloads
	StartTime    time.Time `json:"start_time"`
	TotalTickets int       `json:"total_tickets"`
	SoldTickets  int       `json:"sold_tickets"`
	Price        float64   `json:"price"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"` // active, completed, cancelled
	Organizer    string    `json:"organizer"`
	SeatIDs      []string  `json:"seat_ids,omitempty"` // empty for general admission
}

// Remaining reports how many tickets are still sellable.
func (e *Event) Remaining() int {
	r := e.TotalTickets - e.SoldTickets
	if r < 0 {
		return 0
	}
	return r
}

// HasSeat reports whether seatID is part of the event's seating plan.
func (e *Event) HasSeat(seatID string) bool {
	for _, s := range e.SeatIDs {
		if s == seatID {
			return true
		}
	}
	return false
}
