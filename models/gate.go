package models

import (
	"time"
)

// Gate is a scanner entry point for an event. The access code is shown once
// at creation and only its bcrypt hash is stored.
type Gate struct {
	ID        string     `json:"id"`
	EventID   string     `json:"event_id"`
	Label     string     `json:"label"`
	CodeHash  string     `json:"-"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ScanTally is the per-gate running count of scan outcomes, kept in Redis.
// It is observational only and never feeds back into redemption decisions.
type ScanTally struct {
	Admitted    int64 `json:"admitted"`
	AlreadyUsed int64 `json:"already_used"`
	Invalid     int64 `json:"invalid"`
}

// ScanStats summarizes redemption progress for an event.
type ScanStats struct {
	EventID      string  `json:"event_id"`
	TotalTickets int     `json:"total_tickets"`
	Scanned      int     `json:"scanned"`
	Remaining    int     `json:"remaining"`
	ScanRate     float64 `json:"scan_rate"` // scanned / sold, 0..1
}
