package models

import (
	"fmt"
	"strconv"
)

// Order flow names carried through payment-intent metadata.
const (
	FlowIndividual        = "individual"
	FlowIndividualAtTable = "individual_at_table"
	FlowFullTable         = "full_table"
	FlowCaptainCommitment = "captain_commitment"
)

type CheckoutRequest struct {
	EventID   string `json:"event_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// Buyer identity: either the authenticated user id (set by the API
	// layer) or an email for guest checkout.
	UserID     string `json:"-"`
	BuyerEmail string `json:"buyer_email,omitempty"`
	BuyerName  string `json:"buyer_name,omitempty"`
	// TableID joins an existing table (individual_at_table flow).
	TableID string `json:"table_id,omitempty"`
	// TableName names the table to be created for full_table and
	// captain_commitment flows.
	TableName string `json:"table_name,omitempty"`
	PromoCode string `json:"promo_code,omitempty"`
}

type CheckoutResponse struct {
	RequiresPayment bool   `json:"requires_payment"`
	OrderID         string `json:"order_id"`
	ClientSecret    string `json:"client_secret,omitempty"`
}

// PaymentMetadata is the bag attached to a payment intent so the webhook can
// reconstruct the purchase without the original request. Fields are treated
// as untrusted on the way back in even though this server wrote them.
type PaymentMetadata struct {
	OrderID     string
	EventID     string
	UserID      string
	ProductID   string
	Quantity    int
	TableID     string
	PromoCodeID string
	OrderFlow   string
	TableName   string
}

// ToMap serializes the bag to the string key-value form Stripe metadata
// requires. Empty optional fields are omitted.
func (m PaymentMetadata) ToMap() map[string]string {
	out := map[string]string{
		"order_id":   m.OrderID,
		"event_id":   m.EventID,
		"user_id":    m.UserID,
		"product_id": m.ProductID,
		"quantity":   strconv.Itoa(m.Quantity),
		"order_flow": m.OrderFlow,
	}
	if m.TableID != "" {
		out["table_id"] = m.TableID
	}
	if m.PromoCodeID != "" {
		out["promo_code_id"] = m.PromoCodeID
	}
	if m.TableName != "" {
		out["table_name"] = m.TableName
	}
	return out
}

// ParsePaymentMetadata validates and decodes intent metadata. Missing
// required keys are a hard failure so the event stays unprocessed and
// visible to operators.
func ParsePaymentMetadata(raw map[string]string) (PaymentMetadata, error) {
	m := PaymentMetadata{
		OrderID:     raw["order_id"],
		EventID:     raw["event_id"],
		UserID:      raw["user_id"],
		ProductID:   raw["product_id"],
		TableID:     raw["table_id"],
		PromoCodeID: raw["promo_code_id"],
		OrderFlow:   raw["order_flow"],
		TableName:   raw["table_name"],
	}
	for key, val := range map[string]string{
		"event_id":   m.EventID,
		"user_id":    m.UserID,
		"product_id": m.ProductID,
	} {
		if val == "" {
			return PaymentMetadata{}, fmt.Errorf("payment metadata missing required key %q", key)
		}
	}
	qty, err := strconv.Atoi(raw["quantity"])
	if err != nil || qty < 1 {
		return PaymentMetadata{}, fmt.Errorf("payment metadata has invalid quantity %q", raw["quantity"])
	}
	m.Quantity = qty
	if m.OrderFlow == "" {
		m.OrderFlow = FlowIndividual
	}
	return m, nil
}
