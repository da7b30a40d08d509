package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-engine/internal/status"
	"ticket-engine/models"
	"ticket-engine/store"
)

var fixedNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newPaymentFixture(t *testing.T, st *store.MemoryStore) (*PaymentService, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()

	ledger := NewCapacityService(st)
	promos := NewPromoService(st)
	seats := NewSeatService(db, 5*time.Minute)
	tickets := NewTicketService(st, ledger, promos, seats, NopNotifier{}, 10)
	tickets.nowFn = func() time.Time { return fixedNow }
	tickets.idFn = func() (string, error) { return "TKT-FIXED", nil }

	svc := NewPaymentService(db, nil, st, tickets, ledger, seats, promos, NopNotifier{}, 10*time.Minute, time.Minute)
	svc.nowFn = func() time.Time { return fixedNow }
	svc.idFn = func() (string, error) { return "PUR-FIXED", nil }
	return svc, mock
}

func pendingJSON(t *testing.T, p *models.PendingPurchase) string {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return string(raw)
}

func TestCreatePendingPurchase(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	expected := &models.PendingPurchase{
		ID:         "PUR-FIXED",
		EventID:    ev.ID,
		OwnerEmail: "fan@example.com",
		Quantity:   2,
		Amount:     80,
		Status:     models.PurchaseStatusPending,
		CreatedAt:  fixedNow,
		ExpiresAt:  fixedNow.Add(10 * time.Minute),
	}
	mock.ExpectSet("purchase:PUR-FIXED", []byte(pendingJSON(t, expected)), 0).SetVal("OK")

	purchase, err := svc.CreatePendingPurchase(ctx, IssueRequest{
		EventID:    ev.ID,
		OwnerEmail: "fan@example.com",
		Quantity:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, "PUR-FIXED", purchase.ID)
	assert.Equal(t, 80.0, purchase.Amount)
	assert.Equal(t, models.PurchaseStatusPending, purchase.Status)

	// Capacity is reserved while the payment is pending.
	got, _ := st.GetEvent(ctx, ev.ID)
	assert.Equal(t, 2, got.SoldTickets)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmIssuesTicket(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	// Simulate a session created earlier: the reservation is held.
	_, err := st.ReserveCapacity(ctx, ev.ID, 2)
	require.NoError(t, err)

	pending := &models.PendingPurchase{
		ID:         "PUR-FIXED",
		EventID:    ev.ID,
		OwnerEmail: "fan@example.com",
		Quantity:   2,
		Amount:     80,
		Status:     models.PurchaseStatusPending,
		CreatedAt:  fixedNow,
		ExpiresAt:  fixedNow.Add(10 * time.Minute),
	}
	mock.ExpectEval(claimPurchaseScript,
		[]string{"purchase:PUR-FIXED"},
		models.PurchaseStatusCompleted, 86400).SetVal(pendingJSON(t, pending))

	ticket, err := svc.Confirm(ctx, "PUR-FIXED", "txn-123")
	require.NoError(t, err)
	assert.Equal(t, "TKT-FIXED", ticket.TicketID)
	assert.Equal(t, "txn-123", ticket.PaymentRef)
	assert.Equal(t, 2, ticket.Quantity)

	// No double reservation: sold stays at the pending flow's count.
	got, _ := st.GetEvent(ctx, ev.ID)
	assert.Equal(t, 2, got.SoldTickets)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmSettledPurchase(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	settled := &models.PendingPurchase{ID: "PUR-FIXED", Status: models.PurchaseStatusCompleted}
	mock.ExpectEval(claimPurchaseScript,
		[]string{"purchase:PUR-FIXED"},
		models.PurchaseStatusCompleted, 86400).SetVal("")
	mock.ExpectGet("purchase:PUR-FIXED").SetVal(pendingJSON(t, settled))

	_, err := svc.Confirm(ctx, "PUR-FIXED", "txn-123")
	assert.ErrorIs(t, err, status.ErrPurchaseSettled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmUnknownPurchase(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc, mock := newPaymentFixture(t, st)

	mock.ExpectEval(claimPurchaseScript,
		[]string{"purchase:PUR-NOPE"},
		models.PurchaseStatusCompleted, 86400).SetVal("")
	mock.ExpectGet("purchase:PUR-NOPE").RedisNil()

	_, err := svc.Confirm(ctx, "PUR-NOPE", "txn-123")
	assert.ErrorIs(t, err, status.ErrPurchaseNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// When the payment lands but issuance loses the promo race, the session must
// settle as failed, not completed: a status poll may never report a
// successful purchase that issued no ticket.
func TestConfirmPromoExhaustedMarksFailed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	promos := NewPromoService(st)
	promo, err := promos.Create(ctx, ev.ID, CreatePromoRequest{Code: "ONE", DiscountPercentage: 50, TicketLimit: 1})
	require.NoError(t, err)

	// The only use is burned while the payment is in flight.
	require.NoError(t, st.CreateTicket(ctx, &models.Ticket{
		TicketID: "TKT-RIVAL", EventID: ev.ID, EventKey: ev.EventKey, Quantity: 1,
	}, promo.ID))

	_, err = st.ReserveCapacity(ctx, ev.ID, 1)
	require.NoError(t, err)

	pending := &models.PendingPurchase{
		ID:         "PUR-FIXED",
		EventID:    ev.ID,
		OwnerEmail: "fan@example.com",
		Quantity:   1,
		PromoCode:  "ONE",
		Amount:     20,
		Status:     models.PurchaseStatusPending,
		CreatedAt:  fixedNow,
		ExpiresAt:  fixedNow.Add(10 * time.Minute),
	}
	mock.ExpectEval(claimPurchaseScript,
		[]string{"purchase:PUR-FIXED"},
		models.PurchaseStatusCompleted, 86400).SetVal(pendingJSON(t, pending))

	failed := *pending
	failed.Status = models.PurchaseStatusFailed
	mock.ExpectSet("purchase:PUR-FIXED", []byte(pendingJSON(t, &failed)), settledSessionTTL).SetVal("OK")

	_, err = svc.Confirm(ctx, "PUR-FIXED", "txn-123")
	assert.ErrorIs(t, err, status.ErrPromoLimitReached)

	// The reservation is handed back.
	got, _ := st.GetEvent(ctx, ev.ID)
	assert.Equal(t, 0, got.SoldTickets)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelReleasesReservation(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	_, err := st.ReserveCapacity(ctx, ev.ID, 3)
	require.NoError(t, err)

	pending := &models.PendingPurchase{
		ID:       "PUR-FIXED",
		EventID:  ev.ID,
		Quantity: 3,
		Status:   models.PurchaseStatusPending,
	}
	mock.ExpectEval(claimPurchaseScript,
		[]string{"purchase:PUR-FIXED"},
		models.PurchaseStatusCancelled, 86400).SetVal(pendingJSON(t, pending))

	require.NoError(t, svc.Cancel(ctx, "PUR-FIXED"))

	got, _ := st.GetEvent(ctx, ev.ID)
	assert.Equal(t, 0, got.SoldTickets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepExpiresLapsedSessions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	_, err := st.ReserveCapacity(ctx, ev.ID, 1)
	require.NoError(t, err)

	lapsed := &models.PendingPurchase{
		ID:        "PUR-OLD",
		EventID:   ev.ID,
		Quantity:  1,
		Status:    models.PurchaseStatusPending,
		CreatedAt: fixedNow.Add(-20 * time.Minute),
		ExpiresAt: fixedNow.Add(-10 * time.Minute),
	}
	raw := pendingJSON(t, lapsed)

	mock.ExpectKeys("purchase:*").SetVal([]string{"purchase:PUR-OLD"})
	mock.ExpectGet("purchase:PUR-OLD").SetVal(raw)
	mock.ExpectEval(claimPurchaseScript,
		[]string{"purchase:PUR-OLD"},
		models.PurchaseStatusExpired, 86400).SetVal(raw)

	svc.sweepOnce(ctx)

	got, _ := st.GetEvent(ctx, ev.ID)
	assert.Equal(t, 0, got.SoldTickets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepLeavesLiveSessions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	live := &models.PendingPurchase{
		ID:        "PUR-LIVE",
		EventID:   ev.ID,
		Quantity:  1,
		Status:    models.PurchaseStatusPending,
		CreatedAt: fixedNow,
		ExpiresAt: fixedNow.Add(10 * time.Minute),
	}

	mock.ExpectKeys("purchase:*").SetVal([]string{"purchase:PUR-LIVE"})
	mock.ExpectGet("purchase:PUR-LIVE").SetVal(pendingJSON(t, live))

	svc.sweepOnce(ctx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingPurchasePromoNotConsumed(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc, mock := newPaymentFixture(t, st)

	promos := NewPromoService(st)
	promo, err := promos.Create(ctx, ev.ID, CreatePromoRequest{Code: "HALF", DiscountPercentage: 50, TicketLimit: 5})
	require.NoError(t, err)

	expected := &models.PendingPurchase{
		ID:         "PUR-FIXED",
		EventID:    ev.ID,
		OwnerEmail: "fan@example.com",
		Quantity:   1,
		PromoCode:  "HALF",
		Amount:     20,
		Status:     models.PurchaseStatusPending,
		CreatedAt:  fixedNow,
		ExpiresAt:  fixedNow.Add(10 * time.Minute),
	}
	mock.ExpectSet("purchase:PUR-FIXED", []byte(pendingJSON(t, expected)), 0).SetVal("OK")

	_, err = svc.CreatePendingPurchase(ctx, IssueRequest{
		EventID:    ev.ID,
		OwnerEmail: "fan@example.com",
		Quantity:   1,
		PromoCode:  "half",
	})
	require.NoError(t, err)

	// The use is only burned at settlement.
	got, _ := st.GetPromo(ctx, ev.ID, "HALF")
	assert.Equal(t, 0, got.UsedCount)
	assert.Equal(t, promo.UsedCount, got.UsedCount)

	assert.NoError(t, mock.ExpectationsWereMet())
}
