package types

import (
	cbigquery "cloud.google.com/go/bigquery"

	pkgbigquery "github.com/angelmondragon/sourcing-backend/pkg/bigquery"
)

// NegotiationEventsTable is the table spec behind NegotiationEventRow. The
// column set must stay in step with Save.
func NegotiationEventsTable(name string) pkgbigquery.TableSpec {
	required := func(n string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: n, Type: t, Required: true}
	}
	nullable := func(n string, t cbigquery.FieldType) *cbigquery.FieldSchema {
		return &cbigquery.FieldSchema{Name: n, Type: t}
	}
	return pkgbigquery.TableSpec{
		Name: name,
		Schema: cbigquery.Schema{
			required("event_id", cbigquery.StringFieldType),
			required("event_type", cbigquery.StringFieldType),
			required("aggregate_type", cbigquery.StringFieldType),
			required("aggregate_id", cbigquery.StringFieldType),
			required("occurred_at", cbigquery.TimestampFieldType),
			nullable("actor_id", cbigquery.StringFieldType),
			nullable("actor_role", cbigquery.StringFieldType),
			nullable("requirement_id", cbigquery.StringFieldType),
			nullable("quote_id", cbigquery.StringFieldType),
			nullable("order_id", cbigquery.StringFieldType),
			nullable("buyer_id", cbigquery.StringFieldType),
			nullable("merchant_id", cbigquery.StringFieldType),
			nullable("grade", cbigquery.StringFieldType),
			nullable("origin", cbigquery.StringFieldType),
			nullable("quantity", cbigquery.NumericFieldType),
			nullable("price", cbigquery.NumericFieldType),
			nullable("requirement_status", cbigquery.StringFieldType),
			nullable("quote_status", cbigquery.StringFieldType),
			nullable("order_status", cbigquery.StringFieldType),
			nullable("reason", cbigquery.StringFieldType),
			nullable("payload", cbigquery.JSONFieldType),
		},
		PartitionField: "occurred_at",
		Clustering:     []string{"event_type", "requirement_id"},
	}
}
