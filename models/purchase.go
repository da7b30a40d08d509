package models

import (
	"time"
)

// Pending purchase statuses.
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusCancelled = "cancelled"
	PurchaseStatusExpired   = "expired"
	// PurchaseStatusFailed marks a session whose payment arrived but whose
	// issuance failed; the money side must be reconciled out of band.
	PurchaseStatusFailed = "failed"
)

// PendingPurchase is a capacity reservation awaiting an external payment
// signal. It lives in Redis without a TTL while pending; the sweeper settles
// sessions past ExpiresAt so their reservations are always handed back.
type PendingPurchase struct {
	ID         string    `json:"purchase_id"`
	EventID    string    `json:"event_id"`
	OwnerEmail string    `json:"owner_email"`
	Quantity   int       `json:"quantity"`
	SeatIDs    []string  `json:"seat_ids,omitempty"`
	PromoCode  string    `json:"promo_code,omitempty"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"` // pending, completed, cancelled, expired, failed
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// PaymentNotification is the payment-confirmed signal consumed from the
// bank-payment-notifications channel.
type PaymentNotification struct {
	PurchaseID    string    `json:"purchase_id"`
	Status        string    `json:"status"` // success, failed, cancelled
	TransactionID string    `json:"transaction_id"`
	Timestamp     time.Time `json:"timestamp"`
}
