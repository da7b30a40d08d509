// Package status defines the engine's error taxonomy. Every failure mode a
// caller can act on is a distinct sentinel so handlers never have to
// string-match error messages.
package status

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Event errors
	ErrEventNotFound  = errors.New("event: not found")
	ErrEventNotActive = errors.New("event: not active")

	// Capacity errors
	ErrCapacityExceeded = errors.New("capacity: not enough tickets remaining")

	// Promo errors
	ErrPromoNotFound     = errors.New("promo: not found")
	ErrPromoInactive     = errors.New("promo: inactive")
	ErrPromoExpired      = errors.New("promo: expired")
	ErrPromoLimitReached = errors.New("promo: usage limit reached")
	ErrPromoDuplicate    = errors.New("promo: code already exists for this event")

	// Seat errors (the detailed variant is SeatUnavailableError)
	ErrSeatUnavailable = errors.New("seat: unavailable")
	ErrSeatUnknown     = errors.New("seat: not part of this event's seating plan")

	// Redemption errors
	ErrTicketNotFound    = errors.New("ticket: not found")
	ErrEventMismatch     = errors.New("ticket: event key does not match")
	ErrTicketAlreadyUsed = errors.New("ticket: already used")

	// Purchase session errors
	ErrPurchaseNotFound = errors.New("purchase: not found")
	ErrPurchaseSettled  = errors.New("purchase: already settled")

	// Gate errors
	ErrGateAccessDenied = errors.New("gate: access denied")

	// ErrConsistency marks an atomic update that unexpectedly failed to
	// apply. It indicates a storage-layer bug and must never be retried:
	// retrying a non-idempotent mutation could double-apply it.
	ErrConsistency = errors.New("store: atomic update failed to apply")
)

// SeatUnavailableError reports which requested seats are already taken or
// held so the caller can re-fetch availability and retry with a different
// selection.
type SeatUnavailableError struct {
	Seats []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat: unavailable: %s", strings.Join(e.Seats, ", "))
}

// Is lets errors.Is(err, ErrSeatUnavailable) match the detailed variant.
func (e *SeatUnavailableError) Is(target error) bool {
	return target == ErrSeatUnavailable
}

// Code maps an engine error to the stable uppercase code surfaced by the
// HTTP API. Unknown errors map to INTERNAL.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrEventNotFound):
		return "EVENT_NOT_FOUND"
	case errors.Is(err, ErrEventNotActive):
		return "EVENT_NOT_ACTIVE"
	case errors.Is(err, ErrCapacityExceeded):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, ErrPromoNotFound),
		errors.Is(err, ErrPromoInactive),
		errors.Is(err, ErrPromoExpired),
		errors.Is(err, ErrPromoLimitReached):
		return "PROMO_INVALID"
	case errors.Is(err, ErrPromoDuplicate):
		return "PROMO_DUPLICATE"
	case errors.Is(err, ErrSeatUnavailable), errors.Is(err, ErrSeatUnknown):
		return "SEAT_UNAVAILABLE"
	case errors.Is(err, ErrTicketNotFound):
		return "TICKET_NOT_FOUND"
	case errors.Is(err, ErrEventMismatch):
		return "EVENT_MISMATCH"
	case errors.Is(err, ErrTicketAlreadyUsed):
		return "TICKET_ALREADY_USED"
	case errors.Is(err, ErrPurchaseNotFound):
		return "PURCHASE_NOT_FOUND"
	case errors.Is(err, ErrPurchaseSettled):
		return "PURCHASE_SETTLED"
	case errors.Is(err, ErrGateAccessDenied):
		return "GATE_ACCESS_DENIED"
	default:
		return "INTERNAL"
	}
}
