package services

import (
	"context"
	"log/slog"
	"time"

	"ticket-engine/internal/status"
	"ticket-engine/models"
	"ticket-engine/monitoring"
	"ticket-engine/store"
	"ticket-engine/utils"
)

// IssueRequest describes a ticket purchase. Either Quantity is set (general
// admission) or SeatIDs is non-empty (reserved seating); with seats the
// quantity is the seat count.
type IssueRequest struct {
	EventID    string   `json:"event_id"`
	OwnerEmail string   `json:"owner_email"`
	Quantity   int      `json:"quantity"`
	SeatIDs    []string `json:"seat_ids,omitempty"`
	PromoCode  string   `json:"promo_code,omitempty"`
	PaymentRef string   `json:"payment_ref,omitempty"`

	// HoldID identifies an existing seat hold to commit under (set by the
	// pending-purchase flow). Empty for direct issuance.
	HoldID string `json:"-"`
}

// TicketService orchestrates issuance. Every step that can fail after the
// capacity reservation triggers a compensating release, so a failed purchase
// never leaks capacity, promo uses or seats.
type TicketService struct {
	store       store.Store
	ledger      *CapacityService
	promos      *PromoService
	seats       *SeatService
	notifier    Notifier
	maxQuantity int

	nowFn    func() time.Time
	idFn     func() (string, error)
	holdIDFn func() (string, error)
}

func NewTicketService(st store.Store, ledger *CapacityService, promos *PromoService, seats *SeatService, notifier Notifier, maxQuantity int) *TicketService {
	return &TicketService{
		store:       st,
		ledger:      ledger,
		promos:      promos,
		seats:       seats,
		notifier:    notifier,
		maxQuantity: maxQuantity,
		nowFn:       time.Now,
		idFn:        utils.GenerateTicketID,
		holdIDFn:    newHoldID,
	}
}

// newHoldID mints a fresh hold owner per purchase attempt. Holds are keyed by
// attempt, never by buyer, so two purchases from the same buyer cannot pass
// through each other's holds.
func newHoldID() (string, error) {
	return utils.GenerateCode(8)
}

// Issue runs the full purchase flow and returns the issued ticket. It is
// all-or-nothing: on any failure no capacity is consumed, no promo use is
// burned and no seat stays held.
func (s *TicketService) Issue(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	ev, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != models.EventStatusActive {
		return nil, status.ErrEventNotActive
	}

	qty := req.Quantity
	if len(req.SeatIDs) > 0 {
		qty = len(req.SeatIDs)
	}
	if qty <= 0 || qty > s.maxQuantity {
		return nil, status.ErrCapacityExceeded
	}

	holdID := req.HoldID
	ownHold := false
	if len(req.SeatIDs) > 0 {
		if err := s.checkSeatPlan(ev, req.SeatIDs); err != nil {
			return nil, err
		}
		if holdID == "" {
			var err error
			holdID, err = s.holdIDFn()
			if err != nil {
				return nil, err
			}
			if err := s.seats.HoldSeats(ctx, req.EventID, holdID, req.SeatIDs); err != nil {
				return nil, err
			}
			ownHold = true
		}
		if err := s.checkOccupancy(ctx, req.EventID, req.SeatIDs); err != nil {
			if ownHold {
				s.releaseSeats(ctx, req.EventID, holdID, req.SeatIDs)
			}
			return nil, err
		}
	}

	reservation, err := s.ledger.Reserve(ctx, req.EventID, qty)
	if err != nil {
		if ownHold {
			s.releaseSeats(ctx, req.EventID, holdID, req.SeatIDs)
		}
		monitoring.TrackIssueFailure(req.EventID, status.Code(err))
		return nil, err
	}

	ticket, err := s.commit(ctx, ev, req, qty)
	if err != nil {
		s.ledger.Release(ctx, reservation)
		if ownHold {
			s.releaseSeats(ctx, req.EventID, holdID, req.SeatIDs)
		}
		monitoring.TrackIssueFailure(req.EventID, status.Code(err))
		return nil, err
	}

	// Seat holds are no longer needed; the ticket record now owns the seats.
	if holdID != "" && len(req.SeatIDs) > 0 {
		s.releaseSeats(ctx, req.EventID, holdID, req.SeatIDs)
	}

	monitoring.TrackTicketIssued(req.EventID, qty)
	monitoring.TrackCapacity(req.EventID, ev.TotalTickets-ev.SoldTickets-qty)
	s.notifier.TicketIssued(ctx, ev.EventKey, ticket.TicketID, qty)

	return ticket, nil
}

// commit validates the promo, prices the order and inserts the ticket. The
// promo use is consumed inside the insert transaction.
func (s *TicketService) commit(ctx context.Context, ev *models.Event, req IssueRequest, qty int) (*models.Ticket, error) {
	var promoID string
	var discountPct float64
	var promoCode string
	if req.PromoCode != "" {
		promo, err := s.promos.Validate(ctx, req.EventID, req.PromoCode)
		if err != nil {
			return nil, err
		}
		promoID = promo.ID
		discountPct = promo.DiscountPercentage
		promoCode = promo.Code
	}

	ticketID, err := s.idFn()
	if err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		TicketID:           ticketID,
		EventID:            ev.ID,
		EventKey:           ev.EventKey,
		OwnerEmail:         req.OwnerEmail,
		Quantity:           qty,
		SeatIDs:            req.SeatIDs,
		UnitPrice:          ev.Price,
		DiscountPercentage: discountPct,
		TotalPrice:         FinalPrice(ev.Price, qty, discountPct),
		Status:             models.TicketStatusValid,
		PromoCode:          promoCode,
		PaymentRef:         req.PaymentRef,
		PurchasedAt:        s.nowFn(),
	}

	if err := s.store.CreateTicket(ctx, ticket, promoID); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) checkSeatPlan(ev *models.Event, seatIDs []string) error {
	if len(ev.SeatIDs) == 0 {
		return status.ErrSeatUnknown
	}
	for _, seatID := range seatIDs {
		if !ev.HasSeat(seatID) {
			return status.ErrSeatUnknown
		}
	}
	return nil
}

func (s *TicketService) checkOccupancy(ctx context.Context, eventID string, seatIDs []string) error {
	occupied, err := s.store.OccupiedSeats(ctx, eventID)
	if err != nil {
		return err
	}
	var conflicts []string
	for _, seatID := range seatIDs {
		if occupied[seatID] {
			conflicts = append(conflicts, seatID)
		}
	}
	if len(conflicts) > 0 {
		return &status.SeatUnavailableError{Seats: conflicts}
	}
	return nil
}

func (s *TicketService) releaseSeats(ctx context.Context, eventID, holdID string, seatIDs []string) {
	if err := s.seats.ReleaseSeats(ctx, eventID, holdID, seatIDs); err != nil {
		slog.Error("failed to release seat holds", "event_id", eventID, "error", err)
	}
}

// IssueReserved commits a purchase whose capacity was already reserved by
// the pending-purchase flow. Seat exclusivity is re-checked inside the
// ticket insert, so a purchase whose Redis hold lapsed during the payment
// wait cannot double-sell a seat. On error the caller still owns the
// reservation and any seat holds.
func (s *TicketService) IssueReserved(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	ev, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	qty := req.Quantity
	if len(req.SeatIDs) > 0 {
		qty = len(req.SeatIDs)
	}

	ticket, err := s.commit(ctx, ev, req, qty)
	if err != nil {
		monitoring.TrackIssueFailure(req.EventID, status.Code(err))
		return nil, err
	}

	if req.HoldID != "" && len(req.SeatIDs) > 0 {
		s.releaseSeats(ctx, req.EventID, req.HoldID, req.SeatIDs)
	}

	monitoring.TrackTicketIssued(req.EventID, qty)
	s.notifier.TicketIssued(ctx, ev.EventKey, ticket.TicketID, qty)

	return ticket, nil
}

// GetByTicketID fetches a ticket by its public identifier.
func (s *TicketService) GetByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.store.GetTicket(ctx, ticketID)
}
