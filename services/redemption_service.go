package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-engine/internal/status"
	"ticket-engine/models"
	"ticket-engine/monitoring"
	"ticket-engine/store"
)

// Scan results surfaced to the scanner UI.
const (
	ScanAdmitted    = "admitted"
	ScanAlreadyUsed = "already_used"
	ScanInvalid     = "invalid"
)

// Internal reasons behind an "invalid" result, kept distinct for logs,
// metrics and the gate tally. The operator-facing result stays a plain
// "invalid" either way.
const (
	reasonNotFound      = "ticket_not_found"
	reasonEventMismatch = "event_mismatch"
	reasonBadPayload    = "malformed_payload"
)

// ScanOutcome is the decision for a single scan.
type ScanOutcome struct {
	Result string         `json:"result"`
	Reason string         `json:"reason,omitempty"`
	Ticket *models.Ticket `json:"ticket,omitempty"`
}

// RedemptionService is the valid->used state machine. The decision point is
// a single atomic test-and-set in the store; everything around it (tallies,
// metrics, notifications) is observational and never feeds back into the
// admit decision.
type RedemptionService struct {
	store    store.Store
	Redis    *redis.Client
	notifier Notifier

	nowFn func() time.Time
}

func NewRedemptionService(st store.Store, redisClient *redis.Client, notifier Notifier) *RedemptionService {
	return &RedemptionService{
		store:    st,
		Redis:    redisClient,
		notifier: notifier,
		nowFn:    time.Now,
	}
}

func tallyKey(gateID string) string {
	return fmt.Sprintf("scantally:%s", gateID)
}

// ValidateQR decodes a scanned payload and redeems it. Malformed payloads
// are rejected without touching the store.
func (s *RedemptionService) ValidateQR(ctx context.Context, rawPayload, gateID string) (*ScanOutcome, error) {
	payload, err := models.ParseQRPayload(rawPayload)
	if err != nil {
		s.recordScan(ctx, gateID, "", ScanInvalid, reasonBadPayload)
		return &ScanOutcome{Result: ScanInvalid, Reason: reasonBadPayload}, nil
	}
	return s.Redeem(ctx, payload.TicketID, payload.EventKey, gateID)
}

// Redeem decides admission for one ticket presentation. Re-presenting an
// already-redeemed ticket is a normal outcome, not an error; only storage
// failures surface as errors.
func (s *RedemptionService) Redeem(ctx context.Context, ticketID, eventKey, gateID string) (*ScanOutcome, error) {
	start := s.nowFn()

	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			s.recordScan(ctx, gateID, eventKey, ScanInvalid, reasonNotFound)
			return &ScanOutcome{Result: ScanInvalid, Reason: reasonNotFound}, nil
		}
		return nil, err
	}

	if ticket.EventKey != eventKey {
		slog.Warn("ticket presented at wrong event",
			"ticket_id", ticketID, "ticket_event", ticket.EventKey, "scanned_event", eventKey)
		s.recordScan(ctx, gateID, eventKey, ScanInvalid, reasonEventMismatch)
		return &ScanOutcome{Result: ScanInvalid, Reason: reasonEventMismatch}, nil
	}

	admitted, err := s.store.MarkTicketUsed(ctx, ticketID, s.nowFn())
	if err != nil {
		return nil, err
	}

	if admitted {
		s.recordScan(ctx, gateID, eventKey, ScanAdmitted, "")
		monitoring.TrackRedeemDuration(ScanAdmitted, s.nowFn().Sub(start))
		s.notifier.TicketRedeemed(ctx, eventKey, ticketID, gateID)
		ticket.Status = models.TicketStatusUsed
		return &ScanOutcome{Result: ScanAdmitted, Ticket: ticket}, nil
	}

	// The test-and-set found no valid ticket. Re-read to tell a lost
	// race from a store inconsistency.
	current, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, status.ErrConsistency
	}
	if current.Status != models.TicketStatusUsed {
		return nil, status.ErrConsistency
	}

	s.recordScan(ctx, gateID, eventKey, ScanAlreadyUsed, "")
	monitoring.TrackRedeemDuration(ScanAlreadyUsed, s.nowFn().Sub(start))
	return &ScanOutcome{Result: ScanAlreadyUsed, Ticket: current}, nil
}

// recordScan bumps the gate tally and the scan metrics. Tally failures are
// logged and swallowed; they must never affect the admit decision.
func (s *RedemptionService) recordScan(ctx context.Context, gateID, eventKey, result, reason string) {
	monitoring.TrackScan(eventKey, result)

	if gateID == "" {
		return
	}
	field := result
	if result == ScanInvalid && reason != "" {
		// Mismatches and unknown tickets are tallied separately so the
		// operator dashboard can tell them apart.
		field = reason
	}
	if err := s.Redis.HIncrBy(ctx, tallyKey(gateID), field, 1).Err(); err != nil {
		slog.Warn("failed to record scan tally", "gate_id", gateID, "error", err)
	}
}

// Tally returns the running scan counts for a gate.
func (s *RedemptionService) Tally(ctx context.Context, gateID string) (*models.ScanTally, error) {
	counts, err := s.Redis.HGetAll(ctx, tallyKey(gateID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load scan tally: %w", err)
	}
	tally := &models.ScanTally{}
	for field, val := range counts {
		var n int64
		fmt.Sscan(val, &n)
		switch field {
		case ScanAdmitted:
			tally.Admitted += n
		case ScanAlreadyUsed:
			tally.AlreadyUsed += n
		default:
			tally.Invalid += n
		}
	}
	return tally, nil
}

// Stats summarizes redemption progress for an event.
func (s *RedemptionService) Stats(ctx context.Context, eventID string) (*models.ScanStats, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	scanned, err := s.store.CountUsedTickets(ctx, eventID)
	if err != nil {
		return nil, err
	}
	stats := &models.ScanStats{
		EventID:      eventID,
		TotalTickets: ev.TotalTickets,
		Scanned:      scanned,
		Remaining:    ev.SoldTickets - scanned,
	}
	if stats.Remaining < 0 {
		stats.Remaining = 0
	}
	if ev.SoldTickets > 0 {
		stats.ScanRate = float64(scanned) / float64(ev.SoldTickets)
	}
	return stats, nil
}
