package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRPayloadRoundTrip(t *testing.T) {
	ticket := &Ticket{TicketID: "TKT-ABC123", EventKey: "summer-fest"}

	raw := ticket.QRPayload()
	assert.JSONEq(t, `{"ticketId":"TKT-ABC123","eventKey":"summer-fest"}`, raw)

	payload, err := ParseQRPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "TKT-ABC123", payload.TicketID)
	assert.Equal(t, "summer-fest", payload.EventKey)
}

func TestParseQRPayloadRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "hello"},
		{"empty object", "{}"},
		{"missing event key", `{"ticketId":"TKT-1"}`},
		{"missing ticket id", `{"eventKey":"gig"}`},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQRPayload(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestEventRemaining(t *testing.T) {
	ev := &Event{TotalTickets: 100, SoldTickets: 60}
	assert.Equal(t, 40, ev.Remaining())

	ev.SoldTickets = 120
	assert.Equal(t, 0, ev.Remaining())
}

func TestEventHasSeat(t *testing.T) {
	ev := &Event{SeatIDs: []string{"A1", "A2"}}
	assert.True(t, ev.HasSeat("A1"))
	assert.False(t, ev.HasSeat("B1"))

	ga := &Event{}
	assert.False(t, ga.HasSeat("A1"))
}

func TestPromoExhausted(t *testing.T) {
	assert.False(t, (&PromoCode{TicketLimit: 0, UsedCount: 999}).Exhausted())
	assert.False(t, (&PromoCode{TicketLimit: 5, UsedCount: 4}).Exhausted())
	assert.True(t, (&PromoCode{TicketLimit: 5, UsedCount: 5}).Exhausted())
}
