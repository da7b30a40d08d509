package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-engine/internal/status"
	"ticket-engine/models"
)

// PocketBaseStore persists records in PocketBase collections. The guarded
// counters go through raw dbx so the compare-and-set happens inside SQLite
// rather than in Go.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	rec, err := s.app.FindRecordById("events", eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrEventNotFound
		}
		return nil, fmt.Errorf("find event: %w", err)
	}
	return eventFromRecord(rec)
}

func (s *PocketBaseStore) GetEventByKey(ctx context.Context, eventKey string) (*models.Event, error) {
	rec, err := s.app.FindFirstRecordByFilter("events", "event_key = {:key}", dbx.Params{"key": eventKey})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrEventNotFound
		}
		return nil, fmt.Errorf("find event by key: %w", err)
	}
	return eventFromRecord(rec)
}

func (s *PocketBaseStore) ReserveCapacity(ctx context.Context, eventID string, qty int) (*Reservation, error) {
	res, err := s.app.DB().NewQuery(`
		UPDATE events
		SET sold_tickets = sold_tickets + {:qty}
		WHERE id = {:id}
		  AND status = 'active'
		  AND sold_tickets + {:qty} <= total_tickets
	`).Bind(dbx.Params{"qty": qty, "id": eventID}).WithContext(ctx).Execute()
	if err != nil {
		return nil, fmt.Errorf("reserve capacity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reserve capacity: %w", err)
	}
	if n == 0 {
		// Re-read to tell the caller why the guard failed.
		ev, err := s.GetEvent(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if ev.Status != models.EventStatusActive {
			return nil, status.ErrEventNotActive
		}
		return nil, status.ErrCapacityExceeded
	}
	return &Reservation{EventID: eventID, Quantity: qty}, nil
}

func (s *PocketBaseStore) ReleaseCapacity(ctx context.Context, res *Reservation) error {
	_, err := s.app.DB().NewQuery(`
		UPDATE events
		SET sold_tickets = MAX(sold_tickets - {:qty}, 0)
		WHERE id = {:id}
	`).Bind(dbx.Params{"qty": res.Quantity, "id": res.EventID}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("release capacity: %w", err)
	}
	return nil
}

func (s *PocketBaseStore) GetPromo(ctx context.Context, eventID, code string) (*models.PromoCode, error) {
	rec, err := s.app.FindFirstRecordByFilter("promo_codes",
		"event = {:event} && code = {:code}",
		dbx.Params{"event": eventID, "code": code})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrPromoNotFound
		}
		return nil, fmt.Errorf("find promo: %w", err)
	}
	return promoFromRecord(rec), nil
}

func (s *PocketBaseStore) CreatePromo(ctx context.Context, promo *models.PromoCode) error {
	if _, err := s.app.FindFirstRecordByFilter("promo_codes",
		"event = {:event} && code = {:code}",
		dbx.Params{"event": promo.EventID, "code": promo.Code}); err == nil {
		return status.ErrPromoDuplicate
	}
	col, err := s.app.FindCollectionByNameOrId("promo_codes")
	if err != nil {
		return fmt.Errorf("promo collection: %w", err)
	}
	rec := core.NewRecord(col)
	rec.Set("event", promo.EventID)
	rec.Set("code", promo.Code)
	rec.Set("discount_percentage", promo.DiscountPercentage)
	rec.Set("ticket_limit", promo.TicketLimit)
	rec.Set("used_count", 0)
	rec.Set("is_active", promo.IsActive)
	if promo.ExpiresAt != nil {
		dt, _ := types.ParseDateTime(*promo.ExpiresAt)
		rec.Set("expires_at", dt)
	}
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("save promo: %w", err)
	}
	promo.ID = rec.Id
	return nil
}

func (s *PocketBaseStore) ListPromos(ctx context.Context, eventID string) ([]*models.PromoCode, error) {
	recs, err := s.app.FindRecordsByFilter("promo_codes",
		"event = {:event}", "-created", 0, 0, dbx.Params{"event": eventID})
	if err != nil {
		return nil, fmt.Errorf("list promos: %w", err)
	}
	promos := make([]*models.PromoCode, 0, len(recs))
	for _, rec := range recs {
		promos = append(promos, promoFromRecord(rec))
	}
	return promos, nil
}

func (s *PocketBaseStore) SetPromoActive(ctx context.Context, promoID string, active bool) error {
	rec, err := s.app.FindRecordById("promo_codes", promoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrPromoNotFound
		}
		return fmt.Errorf("find promo: %w", err)
	}
	rec.Set("is_active", active)
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("save promo: %w", err)
	}
	return nil
}

func (s *PocketBaseStore) DeletePromo(ctx context.Context, promoID string) error {
	rec, err := s.app.FindRecordById("promo_codes", promoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrPromoNotFound
		}
		return fmt.Errorf("find promo: %w", err)
	}
	if err := s.app.Delete(rec); err != nil {
		return fmt.Errorf("delete promo: %w", err)
	}
	return nil
}

func (s *PocketBaseStore) CreateTicket(ctx context.Context, t *models.Ticket, promoID string) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		if len(t.SeatIDs) > 0 {
			recs, err := txApp.FindRecordsByFilter("tickets",
				"event = {:event}", "", 0, 0, dbx.Params{"event": t.EventID})
			if err != nil {
				return fmt.Errorf("list tickets: %w", err)
			}
			occupied := make(map[string]bool)
			for _, rec := range recs {
				var seats []string
				if err := rec.UnmarshalJSONField("seat_ids", &seats); err != nil {
					continue
				}
				for _, seat := range seats {
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
			res, err := txApp.DB().NewQuery(`
				UPDATE promo_codes
				SET used_count = used_count + 1
				WHERE id = {:id}
				  AND is_active = TRUE
				  AND (ticket_limit = 0 OR used_count < ticket_limit)
			`).Bind(dbx.Params{"id": promoID}).WithContext(ctx).Execute()
			if err != nil {
				return fmt.Errorf("consume promo: %w", err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return fmt.Errorf("consume promo: %w", err)
			} else if n == 0 {
				return status.ErrPromoLimitReached
			}
		}

		col, err := txApp.FindCollectionByNameOrId("tickets")
		if err != nil {
			return fmt.Errorf("tickets collection: %w", err)
		}
		rec := core.NewRecord(col)
		rec.Set("ticket_id", t.TicketID)
		rec.Set("event", t.EventID)
		rec.Set("event_key", t.EventKey)
		rec.Set("owner_email", t.OwnerEmail)
		rec.Set("quantity", t.Quantity)
		rec.Set("seat_ids", t.SeatIDs)
		rec.Set("unit_price", t.UnitPrice)
		rec.Set("discount_percentage", t.DiscountPercentage)
		rec.Set("total_price", t.TotalPrice)
		rec.Set("status", models.TicketStatusValid)
		rec.Set("promo_code", t.PromoCode)
		rec.Set("payment_ref", t.PaymentRef)
		purchasedAt, _ := types.ParseDateTime(t.PurchasedAt)
		rec.Set("purchased_at", purchasedAt)
		if err := txApp.Save(rec); err != nil {
			return fmt.Errorf("save ticket: %w", err)
		}
		t.ID = rec.Id
		return nil
	})
}

func (s *PocketBaseStore) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	rec, err := s.app.FindFirstRecordByFilter("tickets",
		"ticket_id = {:tid}", dbx.Params{"tid": ticketID})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrTicketNotFound
		}
		return nil, fmt.Errorf("find ticket: %w", err)
	}
	return ticketFromRecord(rec)
}

func (s *PocketBaseStore) MarkTicketUsed(ctx context.Context, ticketID string, usedAt time.Time) (bool, error) {
	dt, _ := types.ParseDateTime(usedAt)
	res, err := s.app.DB().NewQuery(`
		UPDATE tickets
		SET status = 'used', used_at = {:used_at}
		WHERE ticket_id = {:tid} AND status = 'valid'
	`).Bind(dbx.Params{"used_at": dt.String(), "tid": ticketID}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("mark ticket used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark ticket used: %w", err)
	}
	return n > 0, nil
}

func (s *PocketBaseStore) CountUsedTickets(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.app.DB().NewQuery(`
		SELECT COALESCE(SUM(quantity), 0) FROM tickets
		WHERE event = {:event} AND status = 'used'
	`).Bind(dbx.Params{"event": eventID}).WithContext(ctx).Row(&count)
	if err != nil {
		return 0, fmt.Errorf("count used tickets: %w", err)
	}
	return count, nil
}

func (s *PocketBaseStore) OccupiedSeats(ctx context.Context, eventID string) (map[string]bool, error) {
	recs, err := s.app.FindRecordsByFilter("tickets",
		"event = {:event}", "", 0, 0, dbx.Params{"event": eventID})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	occupied := make(map[string]bool)
	for _, rec := range recs {
		var seats []string
		if err := rec.UnmarshalJSONField("seat_ids", &seats); err != nil {
			continue
		}
		for _, seat := range seats {
			occupied[seat] = true
		}
	}
	return occupied, nil
}

func (s *PocketBaseStore) CreateGate(ctx context.Context, gate *models.Gate) error {
	col, err := s.app.FindCollectionByNameOrId("gates")
	if err != nil {
		return fmt.Errorf("gates collection: %w", err)
	}
	rec := core.NewRecord(col)
	rec.Set("event", gate.EventID)
	rec.Set("label", gate.Label)
	rec.Set("code_hash", gate.CodeHash)
	rec.Set("is_active", gate.IsActive)
	if gate.ExpiresAt != nil {
		dt, _ := types.ParseDateTime(*gate.ExpiresAt)
		rec.Set("expires_at", dt)
	}
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("save gate: %w", err)
	}
	gate.ID = rec.Id
	return nil
}

func (s *PocketBaseStore) GetGate(ctx context.Context, gateID string) (*models.Gate, error) {
	rec, err := s.app.FindRecordById("gates", gateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrGateAccessDenied
		}
		return nil, fmt.Errorf("find gate: %w", err)
	}
	return gateFromRecord(rec), nil
}

func (s *PocketBaseStore) ListGates(ctx context.Context, eventID string) ([]*models.Gate, error) {
	recs, err := s.app.FindRecordsByFilter("gates",
		"event = {:event}", "-created", 0, 0, dbx.Params{"event": eventID})
	if err != nil {
		return nil, fmt.Errorf("list gates: %w", err)
	}
	gates := make([]*models.Gate, 0, len(recs))
	for _, rec := range recs {
		gates = append(gates, gateFromRecord(rec))
	}
	return gates, nil
}

func (s *PocketBaseStore) SetGateActive(ctx context.Context, gateID string, active bool) error {
	rec, err := s.app.FindRecordById("gates", gateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return status.ErrGateAccessDenied
		}
		return fmt.Errorf("find gate: %w", err)
	}
	rec.Set("is_active", active)
	if err := s.app.Save(rec); err != nil {
		return fmt.Errorf("save gate: %w", err)
	}
	return nil
}

func eventFromRecord(rec *core.Record) (*models.Event, error) {
	ev := &models.Event{
		ID:           rec.Id,
		Title:        rec.GetString("title"),
		Description:  rec.GetString("description"),
		Location:     rec.GetString("location"),
		EventKey:     rec.GetString("event_key"),
		StartTime:    rec.GetDateTime("start_time").Time(),
		TotalTickets: rec.GetInt("total_tickets"),
		SoldTickets:  rec.GetInt("sold_tickets"),
		Price:        rec.GetFloat("price"),
		Currency:     rec.GetString("currency"),
		Status:       rec.GetString("status"),
		Organizer:    rec.GetString("organizer"),
	}
	if err := rec.UnmarshalJSONField("seat_ids", &ev.SeatIDs); err != nil {
		ev.SeatIDs = nil
	}
	return ev, nil
}

func ticketFromRecord(rec *core.Record) (*models.Ticket, error) {
	t := &models.Ticket{
		ID:                 rec.Id,
		TicketID:           rec.GetString("ticket_id"),
		EventID:            rec.GetString("event"),
		EventKey:           rec.GetString("event_key"),
		OwnerEmail:         rec.GetString("owner_email"),
		Quantity:           rec.GetInt("quantity"),
		UnitPrice:          rec.GetFloat("unit_price"),
		DiscountPercentage: rec.GetFloat("discount_percentage"),
		TotalPrice:         rec.GetFloat("total_price"),
		Status:             rec.GetString("status"),
		PromoCode:          rec.GetString("promo_code"),
		PaymentRef:         rec.GetString("payment_ref"),
		PurchasedAt:        rec.GetDateTime("purchased_at").Time(),
	}
	if err := rec.UnmarshalJSONField("seat_ids", &t.SeatIDs); err != nil {
		t.SeatIDs = nil
	}
	if usedAt := rec.GetDateTime("used_at"); !usedAt.IsZero() {
		ts := usedAt.Time()
		t.UsedAt = &ts
	}
	return t, nil
}

func promoFromRecord(rec *core.Record) *models.PromoCode {
	p := &models.PromoCode{
		ID:                 rec.Id,
		EventID:            rec.GetString("event"),
		Code:               rec.GetString("code"),
		DiscountPercentage: rec.GetFloat("discount_percentage"),
		TicketLimit:        rec.GetInt("ticket_limit"),
		UsedCount:          rec.GetInt("used_count"),
		IsActive:           rec.GetBool("is_active"),
	}
	if expires := rec.GetDateTime("expires_at"); !expires.IsZero() {
		ts := expires.Time()
		p.ExpiresAt = &ts
	}
	return p
}

func gateFromRecord(rec *core.Record) *models.Gate {
	g := &models.Gate{
		ID:       rec.Id,
		EventID:  rec.GetString("event"),
		Label:    rec.GetString("label"),
		CodeHash: rec.GetString("code_hash"),
		IsActive: rec.GetBool("is_active"),
	}
	if expires := rec.GetDateTime("expires_at"); !expires.IsZero() {
		ts := expires.Time()
		g.ExpiresAt = &ts
	}
	return g
}
