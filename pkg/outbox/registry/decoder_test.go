package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
)

func TestDecodersAreVersioned(t *testing.T) {
	d := NewDecoders()
	d.Register(enums.EventRequirementSkipped, 2, JSONDecoder(func() any { return &map[string]string{} }))

	out, err := d.Decode(enums.EventRequirementSkipped, 2, json.RawMessage(`{"skipped_by_role":"merchant"}`))
	require.NoError(t, err)
	assert.Equal(t, "merchant", (*out.(*map[string]string))["skipped_by_role"])

	_, err = d.Decode(enums.EventRequirementSkipped, 1, nil)
	assert.ErrorIs(t, err, ErrDecoderNotRegistered)
}

func TestNegotiationDecodersCoverCatalog(t *testing.T) {
	d := NegotiationDecoders()
	for _, e := range catalog {
		_, err := d.Decode(e.event, 1, json.RawMessage(`{}`))
		assert.NoError(t, err, e.event)
	}

	out, err := d.Decode(enums.EventQuoteRejected, 1, json.RawMessage(`{"status":"rejected","requirement_status":"responded"}`))
	require.NoError(t, err)
	decision, ok := out.(*payloads.QuoteDecisionEvent)
	require.True(t, ok, "got %T", out)
	assert.Equal(t, enums.QuoteStatusRejected, decision.Status)
	assert.Equal(t, enums.RequirementStatusResponded, decision.RequirementStatus)
}

func TestJSONDecoderRejectsMalformedData(t *testing.T) {
	_, err := JSONDecoder(payloadOf[payloads.OrderStatusEvent]())(json.RawMessage(`{"order_id":`))
	assert.Error(t, err)
}
