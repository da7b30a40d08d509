package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-engine/models"
	"ticket-engine/services"
)

type PurchaseHandler struct {
	app      *pocketbase.PocketBase
	tickets  *services.TicketService
	payments *services.PaymentService
	devMode  bool
}

func NewPurchaseHandler(app *pocketbase.PocketBase, tickets *services.TicketService, payments *services.PaymentService, devMode bool) *PurchaseHandler {
	return &PurchaseHandler{
		app:      app,
		tickets:  tickets,
		payments: payments,
		devMode:  devMode,
	}
}

func ticketResponse(t *models.Ticket) map[string]any {
	resp := map[string]any{
		"ticket_id":           t.TicketID,
		"event_id":            t.EventID,
		"event_key":           t.EventKey,
		"owner_email":         t.OwnerEmail,
		"quantity":            t.Quantity,
		"unit_price":          t.UnitPrice,
		"discount_percentage": t.DiscountPercentage,
		"final_price":         t.TotalPrice,
		"status":              t.Status,
		"purchased_at":        t.PurchasedAt,
		"qr_payload":          t.QRPayload(),
	}
	if len(t.SeatIDs) > 0 {
		resp["seat_ids"] = t.SeatIDs
	}
	return resp
}

// Purchase issues a ticket immediately. Used for free events and trusted
// payment-on-site sales; card sales go through the pending flow.
func (h *PurchaseHandler) Purchase(e *core.RequestEvent) error {
	var req services.IssueRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" || req.OwnerEmail == "" {
		return apis.NewBadRequestError("event_id and owner_email are required", nil)
	}

	ticket, err := h.tickets.Issue(e.Request.Context(), req)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusCreated, ticketResponse(ticket))
}

// CreatePending opens a purchase session that waits on a payment signal.
func (h *PurchaseHandler) CreatePending(e *core.RequestEvent) error {
	var req services.IssueRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" || req.OwnerEmail == "" {
		return apis.NewBadRequestError("event_id and owner_email are required", nil)
	}

	purchase, err := h.payments.CreatePendingPurchase(e.Request.Context(), req)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusCreated, purchase)
}

// GetPending returns a purchase session's current state.
func (h *PurchaseHandler) GetPending(e *core.RequestEvent) error {
	purchaseID := e.Request.PathValue("purchaseId")

	purchase, err := h.payments.GetPendingPurchase(e.Request.Context(), purchaseID)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, purchase)
}

// CancelPending abandons a purchase session and releases its reservation.
func (h *PurchaseHandler) CancelPending(e *core.RequestEvent) error {
	purchaseID := e.Request.PathValue("purchaseId")

	if err := h.payments.Cancel(e.Request.Context(), purchaseID); err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{"purchase_id": purchaseID, "status": models.PurchaseStatusCancelled})
}

// SimulatePayment settles a pending purchase without a real bank signal.
// Registered only in development.
func (h *PurchaseHandler) SimulatePayment(e *core.RequestEvent) error {
	if !h.devMode {
		return apis.NewForbiddenError("Not available", nil)
	}

	var req struct {
		PurchaseID    string `json:"purchase_id"`
		Status        string `json:"status"`
		TransactionID string `json:"transaction_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Status == "" {
		req.Status = "success"
	}

	if req.Status != "success" {
		if err := h.payments.Cancel(e.Request.Context(), req.PurchaseID); err != nil {
			return writeError(e, err)
		}
		return e.JSON(http.StatusOK, map[string]any{"purchase_id": req.PurchaseID, "status": models.PurchaseStatusCancelled})
	}

	ticket, err := h.payments.Confirm(e.Request.Context(), req.PurchaseID, req.TransactionID)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, ticketResponse(ticket))
}
