package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ticket-engine/internal/status"
	"ticket-engine/models"
)

// MemoryStore keeps all records in process memory behind a single mutex.
// It backs single-process deployments and the concurrency tests; the guarded
// mutations hold the lock for the whole check-then-mutate sequence, which
// gives the same atomicity the SQL adapter gets from conditional updates.
type MemoryStore struct {
	mu      sync.Mutex
	seq     int
	events  map[string]*models.Event
	promos  map[string]*models.PromoCode
	tickets map[string]*models.Ticket // keyed by ticket_id
	gates   map[string]*models.Gate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:  make(map[string]*models.Event),
		promos:  make(map[string]*models.PromoCode),
		tickets: make(map[string]*models.Ticket),
		gates:   make(map[string]*models.Gate),
	}
}

func (s *MemoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%06d", prefix, s.seq)
}

// SeedEvent registers an event directly, for wiring and tests.
func (s *MemoryStore) SeedEvent(ev *models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = s.nextID("evt")
	}
	cp := *ev
	s.events[ev.ID] = &cp
}

func (s *MemoryStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, status.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (s *MemoryStore) GetEventByKey(ctx context.Context, eventKey string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.EventKey == eventKey {
			cp := *ev
			return &cp, nil
		}
	}
	return nil, status.ErrEventNotFound
}

func (s *MemoryStore) ReserveCapacity(ctx context.Context, eventID string, qty int) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, status.ErrEventNotFound
	}
	if ev.Status != models.EventStatusActive {
		return nil, status.ErrEventNotActive
	}
	if ev.SoldTickets+qty > ev.TotalTickets {
		return nil, status.ErrCapacityExceeded
	}
	ev.SoldTickets += qty
	return &Reservation{EventID: eventID, Quantity: qty}, nil
}

func (s *MemoryStore) ReleaseCapacity(ctx context.Context, res *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[res.EventID]
	if !ok {
		return status.ErrEventNotFound
	}
	ev.SoldTickets -= res.Quantity
	if ev.SoldTickets < 0 {
		ev.SoldTickets = 0
	}
	return nil
}

func (s *MemoryStore) GetPromo(ctx context.Context, eventID, code string) (*models.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.promos {
		if p.EventID == eventID && p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, status.ErrPromoNotFound
}

func (s *MemoryStore) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.promos {
		if p.EventID == promo.EventID && strings.EqualFold(p.Code, promo.Code) {
			return status.ErrPromoDuplicate
		}
	}
	promo.ID = s.nextID("promo")
	cp := *promo
	s.promos[promo.ID] = &cp
	return nil
}

func (s *MemoryStore) ListPromos(ctx context.Context, eventID string) ([]*models.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PromoCode
	for _, p := range s.promos {
		if p.EventID == eventID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetPromoActive(ctx context.Context, promoID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promos[promoID]
	if !ok {
		return status.ErrPromoNotFound
	}
	p.IsActive = active
	return nil
}

func (s *MemoryStore) DeletePromo(ctx context.Context, promoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.promos[promoID]; !ok {
		return status.ErrPromoNotFound
	}
	delete(s.promos, promoID)
	return nil
}

func (s *MemoryStore) CreateTicket(ctx context.Context, t *models.Ticket, promoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Seats first: the memory store has no rollback, so nothing may be
	// mutated before the exclusivity check passes.
	if len(t.SeatIDs) > 0 {
		occupied := make(map[string]bool)
		for _, existing := range s.tickets {
			if existing.EventID != t.EventID {
				continue
			}
			for _, seat := range existing.SeatIDs {
				occupied[seat] = true
			}
		}
		var conflicts []string
		for _, seat := range t.SeatIDs {
			if occupied[seat] {
				conflicts = append(conflicts, seat)
			}
		}
		if len(conflicts) > 0 {
			return &status.SeatUnavailableError{Seats: conflicts}
		}
	}
	if promoID != "" {
		p, ok := s.promos[promoID]
		if !ok {
			return status.ErrPromoNotFound
		}
		if !p.IsActive || p.Exhausted() {
			return status.ErrPromoLimitReached
		}
		p.UsedCount++
	}
	t.ID = s.nextID("tkt")
	t.Status = models.TicketStatusValid
	cp := *t
	s.tickets[t.TicketID] = &cp
	return nil
}

func (s *MemoryStore) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, status.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) MarkTicketUsed(ctx context.Context, ticketID string, usedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return false, nil
	}
	if t.Status != models.TicketStatusValid {
		return false, nil
	}
	t.Status = models.TicketStatusUsed
	ts := usedAt
	t.UsedAt = &ts
	return true, nil
}

func (s *MemoryStore) CountUsedTickets(ctx context.Context, eventID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, t := range s.tickets {
		if t.EventID == eventID && t.Status == models.TicketStatusUsed {
			count += t.Quantity
		}
	}
	return count, nil
}

func (s *MemoryStore) OccupiedSeats(ctx context.Context, eventID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	occupied := make(map[string]bool)
	for _, t := range s.tickets {
		if t.EventID != eventID {
			continue
		}
		for _, seat := range t.SeatIDs {
			occupied[seat] = true
		}
	}
	return occupied, nil
}

func (s *MemoryStore) CreateGate(ctx context.Context, gate *models.Gate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate.ID = s.nextID("gate")
	cp := *gate
	s.gates[gate.ID] = &cp
	return nil
}

func (s *MemoryStore) GetGate(ctx context.Context, gateID string) (*models.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[gateID]
	if !ok {
		return nil, status.ErrGateAccessDenied
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) ListGates(ctx context.Context, eventID string) ([]*models.Gate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Gate
	for _, g := range s.gates {
		if g.EventID == eventID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) SetGateActive(ctx context.Context, gateID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[gateID]
	if !ok {
		return status.ErrGateAccessDenied
	}
	g.IsActive = active
	return nil
}
