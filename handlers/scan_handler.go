package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-engine/security"
	"ticket-engine/services"
)

type ScanHandler struct {
	app        *pocketbase.PocketBase
	redemption *services.RedemptionService
	gates      *services.GateService
	limiter    *security.RateLimiter
}

func NewScanHandler(app *pocketbase.PocketBase, redemption *services.RedemptionService, gates *services.GateService, limiter *security.RateLimiter) *ScanHandler {
	return &ScanHandler{
		app:        app,
		redemption: redemption,
		gates:      gates,
		limiter:    limiter,
	}
}

// gateSession resolves the scanner's session token, when present.
func (h *ScanHandler) gateSession(e *core.RequestEvent) string {
	token := e.Request.Header.Get("X-Gate-Session")
	if token == "" {
		return ""
	}
	gateID, err := h.gates.ResolveSession(e.Request.Context(), token)
	if err != nil {
		return ""
	}
	return gateID
}

// Validate decides admission for a scanned ticket. The response carries the
// operator-facing result; re-scanning a redeemed ticket keeps returning
// already_used.
func (h *ScanHandler) Validate(e *core.RequestEvent) error {
	var req struct {
		QRPayload string `json:"qr_payload"`
		TicketID  string `json:"ticket_id"`
		EventKey  string `json:"event_key"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	limiterKey := e.RealIP()
	gateID := h.gateSession(e)
	if gateID != "" {
		limiterKey = gateID
	}
	if !h.limiter.Allow(ctx, "scan:"+limiterKey) {
		return e.JSON(http.StatusTooManyRequests, map[string]any{
			"code":    "RATE_LIMITED",
			"message": "too many scan attempts",
		})
	}

	var outcome *services.ScanOutcome
	var err error
	if req.QRPayload != "" {
		outcome, err = h.redemption.ValidateQR(ctx, req.QRPayload, gateID)
	} else {
		if req.TicketID == "" || req.EventKey == "" {
			return apis.NewBadRequestError("qr_payload or ticket_id and event_key are required", nil)
		}
		outcome, err = h.redemption.Redeem(ctx, req.TicketID, req.EventKey, gateID)
	}
	if err != nil {
		return writeError(e, err)
	}

	resp := map[string]any{"result": outcome.Result}
	if outcome.Reason != "" {
		resp["reason"] = outcome.Reason
	}
	if outcome.Ticket != nil {
		resp["ticket"] = ticketResponse(outcome.Ticket)
	}
	return e.JSON(http.StatusOK, resp)
}

// VerifyAccess exchanges a gate access code for a scan session token.
func (h *ScanHandler) VerifyAccess(e *core.RequestEvent) error {
	var req struct {
		EventID string `json:"event_id"`
		Code    string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	if !h.limiter.Allow(ctx, "gate:"+e.RealIP()) {
		return e.JSON(http.StatusTooManyRequests, map[string]any{
			"code":    "RATE_LIMITED",
			"message": "too many access attempts",
		})
	}

	gate, token, err := h.gates.VerifyAccess(ctx, req.EventID, req.Code)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"gate_id":       gate.ID,
		"label":         gate.Label,
		"session_token": token,
	})
}

// Stats reports redemption progress for an event.
func (h *ScanHandler) Stats(e *core.RequestEvent) error {
	eventID := e.Request.URL.Query().Get("event_id")
	if eventID == "" {
		return apis.NewBadRequestError("event_id required", nil)
	}

	stats, err := h.redemption.Stats(e.Request.Context(), eventID)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, stats)
}

// Tally returns the scan counts for the caller's gate session.
func (h *ScanHandler) Tally(e *core.RequestEvent) error {
	gateID := h.gateSession(e)
	if gateID == "" {
		gateID = e.Request.URL.Query().Get("gate_id")
	}
	if gateID == "" {
		return apis.NewBadRequestError("gate session or gate_id required", nil)
	}

	tally, err := h.redemption.Tally(e.Request.Context(), gateID)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, tally)
}
