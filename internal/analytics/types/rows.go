package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
)

// NegotiationEventRow mirrors the negotiation_events BigQuery schema.
// Nil pointers are written as NULL.
type NegotiationEventRow struct {
	EventID           string
	EventType         string
	AggregateType     string
	AggregateID       string
	OccurredAt        time.Time
	ActorID           *string
	ActorRole         *string
	RequirementID     *string
	QuoteID           *string
	OrderID           *string
	BuyerID           *string
	MerchantID        *string
	Grade             *string
	Origin            *string
	Quantity          *decimal.Decimal
	Price             *decimal.Decimal
	RequirementStatus *string
	QuoteStatus       *string
	OrderStatus       *string
	Reason            *string
	Payload           cbigquery.NullJSON
}

var _ cbigquery.ValueSaver = (*NegotiationEventRow)(nil)

// Save implements bigquery.ValueSaver. The event id doubles as the insert id
// so a redelivered message does not produce a second row.
func (r *NegotiationEventRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":       r.EventID,
		"event_type":     r.EventType,
		"aggregate_type": r.AggregateType,
		"aggregate_id":   r.AggregateID,
		"occurred_at":    r.OccurredAt.UTC(),
	}
	putString(row, "actor_id", r.ActorID)
	putString(row, "actor_role", r.ActorRole)
	putString(row, "requirement_id", r.RequirementID)
	putString(row, "quote_id", r.QuoteID)
	putString(row, "order_id", r.OrderID)
	putString(row, "buyer_id", r.BuyerID)
	putString(row, "merchant_id", r.MerchantID)
	putString(row, "grade", r.Grade)
	putString(row, "origin", r.Origin)
	putString(row, "requirement_status", r.RequirementStatus)
	putString(row, "quote_status", r.QuoteStatus)
	putString(row, "order_status", r.OrderStatus)
	putString(row, "reason", r.Reason)
	// NUMERIC columns take the exact decimal text.
	if r.Quantity != nil {
		row["quantity"] = r.Quantity.String()
	}
	if r.Price != nil {
		row["price"] = r.Price.String()
	}
	if r.Payload.Valid {
		row["payload"] = r.Payload.JSONVal
	}
	return row, r.EventID, nil
}

func putString(row map[string]cbigquery.Value, key string, value *string) {
	if value == nil {
		return
	}
	row[key] = *value
}
