package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-engine/services"
	"ticket-engine/store"
)

type EventHandler struct {
	app    *pocketbase.PocketBase
	store  store.Store
	ledger *services.CapacityService
	seats  *services.SeatService
	gates  *services.GateService
}

func NewEventHandler(app *pocketbase.PocketBase, st store.Store, ledger *services.CapacityService, seats *services.SeatService, gates *services.GateService) *EventHandler {
	return &EventHandler{
		app:    app,
		store:  st,
		ledger: ledger,
		seats:  seats,
		gates:  gates,
	}
}

// Availability reports remaining capacity and, for seated events, the state
// of every seat: available, held or sold.
func (h *EventHandler) Availability(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	ev, err := h.store.GetEvent(ctx, eventID)
	if err != nil {
		return writeError(e, err)
	}

	resp := map[string]any{
		"event_id":      ev.ID,
		"event_key":     ev.EventKey,
		"status":        ev.Status,
		"total_tickets": ev.TotalTickets,
		"sold_tickets":  ev.SoldTickets,
		"remaining":     ev.Remaining(),
	}

	if len(ev.SeatIDs) > 0 {
		held, err := h.seats.Availability(ctx, eventID, ev.SeatIDs)
		if err != nil {
			return writeError(e, err)
		}
		occupied, err := h.store.OccupiedSeats(ctx, eventID)
		if err != nil {
			return writeError(e, err)
		}
		seatStates := make(map[string]string, len(ev.SeatIDs))
		for _, seatID := range ev.SeatIDs {
			switch {
			case occupied[seatID]:
				seatStates[seatID] = "sold"
			default:
				seatStates[seatID] = held[seatID]
			}
		}
		resp["seats"] = seatStates
	}

	return e.JSON(http.StatusOK, resp)
}

// CreateGate mints a gate and returns its one-time access code.
func (h *EventHandler) CreateGate(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.PathValue("eventId")

	var req struct {
		Label string `json:"label"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	gate, code, err := h.gates.CreateGate(e.Request.Context(), eventID, req.Label)
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusCreated, map[string]any{
		"gate_id": gate.ID,
		"label":   gate.Label,
		// Shown exactly once; only the hash is stored.
		"access_code": code,
		"expires_at":  gate.ExpiresAt,
	})
}

// ListGates returns the event's gates, without code material.
func (h *EventHandler) ListGates(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	gates, err := h.gates.List(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, gates)
}

// SetGateActive toggles a gate.
func (h *EventHandler) SetGateActive(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	gateID := e.Request.PathValue("gateId")
	if err := h.gates.SetActive(e.Request.Context(), gateID, req.IsActive); err != nil {
		return writeError(e, err)
	}

	return e.JSON(http.StatusOK, map[string]any{"gate_id": gateID, "is_active": req.IsActive})
}
