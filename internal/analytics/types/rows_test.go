package types

import (
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiationEventRowSave(t *testing.T) {
	quoteID := "9a1f0c1e-2f4b-4c55-8a55-3d2f6a0c9d10"
	qty := decimal.RequireFromString("12.5")
	price := decimal.NewFromInt(8150)
	row := &NegotiationEventRow{
		EventID:       "evt-1",
		EventType:     "quote_submitted",
		AggregateType: "quote",
		AggregateID:   quoteID,
		OccurredAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)),
		QuoteID:       &quoteID,
		Quantity:      &qty,
		Price:         &price,
		Payload:       cbigquery.NullJSON{Valid: true, JSONVal: `{"a":1}`},
	}

	values, insertID, err := row.Save()
	require.NoError(t, err)
	assert.Equal(t, "evt-1", insertID)
	assert.Equal(t, "12.5", values["quantity"])
	assert.Equal(t, "8150", values["price"])
	assert.Equal(t, quoteID, values["quote_id"])
	assert.Equal(t, `{"a":1}`, values["payload"])
	assert.Equal(t, time.UTC, values["occurred_at"].(time.Time).Location())

	_, hasOrder := values["order_id"]
	assert.False(t, hasOrder)
	_, hasReason := values["reason"]
	assert.False(t, hasReason)
}

func TestNegotiationEventsTableCoversRow(t *testing.T) {
	s := "x"
	d := decimal.NewFromInt(1)
	full := &NegotiationEventRow{
		EventID: "e", EventType: "t", AggregateType: "a", AggregateID: "id", OccurredAt: time.Now(),
		ActorID: &s, ActorRole: &s, RequirementID: &s, QuoteID: &s, OrderID: &s,
		BuyerID: &s, MerchantID: &s, Grade: &s, Origin: &s, Quantity: &d, Price: &d,
		RequirementStatus: &s, QuoteStatus: &s, OrderStatus: &s, Reason: &s,
		Payload: cbigquery.NullJSON{Valid: true, JSONVal: `{}`},
	}
	values, _, err := full.Save()
	require.NoError(t, err)

	spec := NegotiationEventsTable("negotiation_events")
	columns := map[string]bool{}
	for _, field := range spec.Schema {
		columns[field.Name] = true
	}
	assert.Len(t, values, len(spec.Schema))
	for key := range values {
		assert.True(t, columns[key], "column %s missing from schema", key)
	}
	assert.Equal(t, "occurred_at", spec.PartitionField)
}
