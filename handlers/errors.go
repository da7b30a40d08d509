package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticket-engine/internal/status"
)

// writeError renders an engine error as a stable machine-readable code plus
// a human message. Clients branch on the code, never on the message.
func writeError(e *core.RequestEvent, err error) error {
	code := status.Code(err)

	httpStatus := http.StatusInternalServerError
	switch {
	case errors.Is(err, status.ErrEventNotFound),
		errors.Is(err, status.ErrTicketNotFound),
		errors.Is(err, status.ErrPurchaseNotFound):
		httpStatus = http.StatusNotFound
	case errors.Is(err, status.ErrCapacityExceeded),
		errors.Is(err, status.ErrSeatUnavailable),
		errors.Is(err, status.ErrSeatUnknown),
		errors.Is(err, status.ErrEventNotActive),
		errors.Is(err, status.ErrPromoNotFound),
		errors.Is(err, status.ErrPromoInactive),
		errors.Is(err, status.ErrPromoExpired),
		errors.Is(err, status.ErrPromoLimitReached),
		errors.Is(err, status.ErrPromoDuplicate),
		errors.Is(err, status.ErrPurchaseSettled),
		errors.Is(err, status.ErrTicketAlreadyUsed):
		httpStatus = http.StatusConflict
	case errors.Is(err, status.ErrGateAccessDenied):
		httpStatus = http.StatusUnauthorized
	}

	body := map[string]any{
		"code":    code,
		"message": err.Error(),
	}

	// Seat conflicts carry the contested seats so the client can offer an
	// alternative selection.
	var seatErr *status.SeatUnavailableError
	if errors.As(err, &seatErr) {
		body["seats"] = seatErr.Seats
	}

	return e.JSON(httpStatus, body)
}
