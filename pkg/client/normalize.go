package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errMissingID = errors.New("record has no id")

// fields is a response object with keys folded so that id, _id, ID,
// requirementId and requirement_id resolve to one spelling each.
type fields map[string]any

func foldKey(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "_", ""))
}

func newFields(raw map[string]any) fields {
	out := make(fields, len(raw))
	for k, v := range raw {
		folded := foldKey(k)
		if _, exists := out[folded]; exists && v == nil {
			continue
		}
		out[folded] = v
	}
	return out
}

func (f fields) get(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := f[foldKey(key)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (f fields) str(keys ...string) string {
	v, ok := f.get(keys...)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func (f fields) strPtr(keys ...string) *string {
	if _, ok := f.get(keys...); !ok {
		return nil
	}
	s := f.str(keys...)
	return &s
}

func (f fields) dec(keys ...string) (decimal.Decimal, error) {
	v, ok := f.get(keys...)
	if !ok {
		return decimal.Zero, nil
	}
	return toDecimal(v)
}

func (f fields) decPtr(keys ...string) (*decimal.Decimal, error) {
	v, ok := f.get(keys...)
	if !ok {
		return nil, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (f fields) boolean(keys ...string) bool {
	v, ok := f.get(keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	case json.Number:
		return t.String() != "0"
	default:
		return false
	}
}

func (f fields) integer(keys ...string) int {
	d, err := f.dec(keys...)
	if err != nil {
		return 0
	}
	return int(d.IntPart())
}

// toDecimal accepts JSON numbers and numeric strings with thousand separators.
func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case json.Number:
		return decimal.NewFromString(t.String())
	case float64:
		return decimal.NewFromFloat(t), nil
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if cleaned == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(cleaned)
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric value %T", v)
	}
}

// decodeObject unwraps an optional {"data": ...} envelope and returns the object.
func decodeObject(body []byte) (fields, error) {
	value, err := decodeLoose(body)
	if err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", value)
	}
	return newFields(obj), nil
}

// decodeList accepts a bare array, {"items": [...]} or either wrapped in "data".
func decodeList(body []byte) ([]fields, error) {
	value, err := decodeLoose(body)
	if err != nil {
		return nil, err
	}
	if obj, ok := value.(map[string]any); ok {
		value = newFields(obj)["items"]
	}
	items, ok := value.([]any)
	if !ok {
		if value == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("expected list, got %T", value)
	}
	out := make([]fields, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object in list, got %T", item)
		}
		out = append(out, newFields(obj))
	}
	return out, nil
}

func decodeLoose(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if obj, ok := value.(map[string]any); ok {
		if data, ok := newFields(obj)["data"]; ok {
			return data, nil
		}
	}
	return value, nil
}

func normalizeRequirement(f fields) (Requirement, error) {
	out := Requirement{
		ID:               f.str("id", "_id", "requirement_id"),
		BuyerID:          f.str("buyer_id"),
		Grade:            f.str("grade"),
		Origin:           f.str("origin"),
		AllowLowerBid:    f.boolean("allow_lower_bid"),
		DeliveryLocation: f.str("delivery_location"),
		DeliveryCity:     f.str("delivery_city"),
		DeliveryCountry:  f.str("delivery_country"),
		DeliveryDeadline: f.str("delivery_deadline"),
		Specifications:   f.strPtr("specifications"),
		IsDraft:          f.boolean("is_draft"),
		Status:           f.str("status"),
		Expired:          f.boolean("expired"),
		QuoteSignal:      f.str("quote_signal"),
		QuoteCount:       f.integer("quote_count"),
	}
	if out.ID == "" {
		return Requirement{}, errMissingID
	}
	var err error
	if out.RequiredQuantity, err = f.dec("required_quantity"); err != nil {
		return Requirement{}, fmt.Errorf("required_quantity: %w", err)
	}
	if out.MinimumQuantity, err = f.dec("minimum_quantity"); err != nil {
		return Requirement{}, fmt.Errorf("minimum_quantity: %w", err)
	}
	if out.ExpectedPrice, err = f.dec("expected_price"); err != nil {
		return Requirement{}, fmt.Errorf("expected_price: %w", err)
	}
	if out.CeilingPrice, err = f.decPtr("ceiling_price"); err != nil {
		return Requirement{}, fmt.Errorf("ceiling_price: %w", err)
	}
	// dates may arrive as full timestamps
	if len(out.DeliveryDeadline) > len("2006-01-02") {
		out.DeliveryDeadline = out.DeliveryDeadline[:len("2006-01-02")]
	}
	return out, nil
}

func normalizeQuote(f fields) (Quote, error) {
	out := Quote{
		ID:            f.str("id", "_id", "quote_id"),
		RequirementID: f.str("requirement_id"),
		MerchantID:    f.str("merchant_id"),
		Remarks:       f.strPtr("remarks"),
		Status:        f.str("status"),
	}
	if out.ID == "" {
		return Quote{}, errMissingID
	}
	var err error
	if out.Quantity, err = f.dec("quantity"); err != nil {
		return Quote{}, fmt.Errorf("quantity: %w", err)
	}
	if out.Price, err = f.dec("price"); err != nil {
		return Quote{}, fmt.Errorf("price: %w", err)
	}
	if out.Total, err = f.dec("total"); err != nil {
		return Quote{}, fmt.Errorf("total: %w", err)
	}
	if out.Total.IsZero() {
		out.Total = out.Quantity.Mul(out.Price)
	}
	return out, nil
}
