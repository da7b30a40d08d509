package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-engine/internal/status"
	"ticket-engine/models"
	"ticket-engine/store"
)

func newTestEvent(st *store.MemoryStore, total int, seats ...string) *models.Event {
	ev := &models.Event{
		Title:        "Promo Gig",
		EventKey:     "promo-gig",
		TotalTickets: total,
		Price:        40,
		Currency:     "USD",
		Status:       models.EventStatusActive,
		SeatIDs:      seats,
	}
	st.SeedEvent(ev)
	return ev
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "EARLY10", NormalizeCode("  early10 "))
	assert.Equal(t, "VIP", NormalizeCode("vIp"))
}

func TestPromoValidate(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc := NewPromoService(st)

	_, err := svc.Create(ctx, ev.ID, CreatePromoRequest{Code: "early10", DiscountPercentage: 10, TicketLimit: 2})
	require.NoError(t, err)

	// lookup is case-insensitive
	promo, err := svc.Validate(ctx, ev.ID, "EaRlY10")
	require.NoError(t, err)
	assert.Equal(t, "EARLY10", promo.Code)
	assert.Equal(t, 10.0, promo.DiscountPercentage)

	_, err = svc.Validate(ctx, ev.ID, "NOPE")
	assert.ErrorIs(t, err, status.ErrPromoNotFound)
}

func TestPromoValidateInactive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc := NewPromoService(st)

	promo, err := svc.Create(ctx, ev.ID, CreatePromoRequest{Code: "PAUSED", DiscountPercentage: 5})
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(ctx, promo.ID, false))

	_, err = svc.Validate(ctx, ev.ID, "PAUSED")
	assert.ErrorIs(t, err, status.ErrPromoInactive)
}

func TestPromoValidateExpired(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc := NewPromoService(st)

	past := time.Now().Add(-time.Hour)
	_, err := svc.Create(ctx, ev.ID, CreatePromoRequest{Code: "OLD", DiscountPercentage: 5, ExpiresAt: &past})
	require.NoError(t, err)

	_, err = svc.Validate(ctx, ev.ID, "OLD")
	assert.ErrorIs(t, err, status.ErrPromoExpired)
}

func TestPromoValidateLimitReached(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc := NewPromoService(st)

	promo, err := svc.Create(ctx, ev.ID, CreatePromoRequest{Code: "TWO", DiscountPercentage: 5, TicketLimit: 2})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ticket := &models.Ticket{TicketID: "TKT-L" + string(rune('A'+i)), EventID: ev.ID, EventKey: ev.EventKey, Quantity: 1}
		require.NoError(t, st.CreateTicket(ctx, ticket, promo.ID))
	}

	_, err = svc.Validate(ctx, ev.ID, "TWO")
	assert.ErrorIs(t, err, status.ErrPromoLimitReached)
}

func TestFinalPrice(t *testing.T) {
	tests := []struct {
		name     string
		unit     float64
		qty      int
		discount float64
		want     float64
	}{
		{"no discount", 50, 2, 0, 100},
		{"ten percent", 50, 2, 10, 90},
		{"free", 50, 1, 100, 0},
		{"rounds half away from zero", 33.335, 1, 0, 33.34},
		{"third off odd price", 19.99, 3, 33.33, 39.98},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FinalPrice(tt.unit, tt.qty, tt.discount), 0.0001)
		})
	}
}

func TestPromoCreateDuplicateCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ev := newTestEvent(st, 100)
	svc := NewPromoService(st)

	_, err := svc.Create(ctx, ev.ID, CreatePromoRequest{Code: "VIP", DiscountPercentage: 20})
	require.NoError(t, err)

	_, err = svc.Create(ctx, ev.ID, CreatePromoRequest{Code: "vip", DiscountPercentage: 20})
	assert.ErrorIs(t, err, status.ErrPromoDuplicate)
}
