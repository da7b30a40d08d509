package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-engine/services"
)

type PromoHandler struct {
	app    *pocketbase.PocketBase
	promos *services.PromoService
}

func NewPromoHandler(app *pocketbase.PocketBase, promos *services.PromoService) *PromoHandler {
	return &PromoHandler{
		app:    app,
		promos: promos,
	}
}

// Create mints a promo code for an event. Codes are upper-cased and unique
// per event.
func (h *PromoHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")

	var req services.CreatePromoRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Code == "" {
		return apis.NewBadRequestError("code is required", nil)
	}
	if req.DiscountPercentage <= 0 || req.DiscountPercentage > 100 {
		return apis.NewBadRequestError("discount_percentage must be in (0, 100]", nil)
	}
	if req.TicketLimit < 0 {
		return apis.NewBadRequestError("ticket_limit must not be negative", nil)
	}

	promo, err := h.promos.Create(e.Request.Context(), eventID, req)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusCreated, promo)
}

// List returns an event's promo codes with their usage counts.
func (h *PromoHandler) List(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	promos, err := h.promos.List(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, promos)
}

// SetActive toggles a promo code.
func (h *PromoHandler) SetActive(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	promoID := e.Request.PathValue("promoId")
	if err := h.promos.SetActive(e.Request.Context(), promoID, req.IsActive); err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{"id": promoID, "is_active": req.IsActive})
}

// Delete removes a promo code. Issued tickets keep their recorded discount.
func (h *PromoHandler) Delete(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	promoID := e.Request.PathValue("promoId")
	if err := h.promos.Delete(e.Request.Context(), promoID); err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{"id": promoID, "deleted": true})
}
