package models

import (
	"time"
)

type PromoCode struct {
	ID                 string     `json:"id"`
	EventID            string     `json:"event_id"`
	Code               string     `json:"code"` // stored upper-cased
	DiscountPercentage float64    `json:"discount_percentage"`
	TicketLimit        int        `json:"ticket_limit"` // 0 means unlimited
	UsedCount          int        `json:"used_count"`
	IsActive           bool       `json:"is_active"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// Exhausted reports whether the code's usage limit has been reached.
func (p *PromoCode) Exhausted() bool {
	return p.TicketLimit > 0 && p.UsedCount >= p.TicketLimit
}
