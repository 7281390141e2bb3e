package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMetadataRoundTrip(t *testing.T) {
	meta := PaymentMetadata{
		OrderID:   "o1",
		EventID:   "e1",
		UserID:    "u1",
		ProductID: "p1",
		Quantity:  10,
		OrderFlow: FlowFullTable,
		TableName: "Front Row",
	}

	raw := meta.ToMap()
	assert.Equal(t, "10", raw["quantity"])
	assert.NotContains(t, raw, "table_id", "empty optional fields are omitted")
	assert.NotContains(t, raw, "promo_code_id")

	parsed, err := ParsePaymentMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, meta, parsed)
}

func TestParsePaymentMetadataRejectsMissingKeys(t *testing.T) {
	base := map[string]string{
		"order_id": "o1", "event_id": "e1", "user_id": "u1",
		"product_id": "p1", "quantity": "2",
	}
	for _, key := range []string{"event_id", "user_id", "product_id"} {
		raw := map[string]string{}
		for k, v := range base {
			raw[k] = v
		}
		delete(raw, key)
		_, err := ParsePaymentMetadata(raw)
		require.Error(t, err, "missing %s must fail", key)
		assert.Contains(t, err.Error(), key)
	}
}

func TestParsePaymentMetadataQuantityAndFlowDefaults(t *testing.T) {
	raw := map[string]string{
		"order_id": "o1", "event_id": "e1", "user_id": "u1",
		"product_id": "p1", "quantity": "3",
	}
	parsed, err := ParsePaymentMetadata(raw)
	require.NoError(t, err)
	assert.Equal(t, FlowIndividual, parsed.OrderFlow, "flow defaults to individual")

	for _, bad := range []string{"", "zero", "0", "-1"} {
		raw["quantity"] = bad
		_, err := ParsePaymentMetadata(raw)
		assert.Error(t, err, "quantity %q must fail", bad)
	}
}
