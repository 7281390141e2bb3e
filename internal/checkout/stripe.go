package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// IntentParams is what the engine needs from a payment provider to defer a
// purchase: an amount in minor units, a currency, the metadata bag the
// webhook reconstructs the purchase from, and a receipt address.
type IntentParams struct {
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
	ReceiptEmail string
}

type Intent struct {
	ID           string
	ClientSecret string
}

// IntentCreator abstracts payment-intent creation so tests can stub the
// provider round-trip.
type IntentCreator interface {
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
}

// StripeIntents is the production IntentCreator.
type StripeIntents struct{}

// InitStripe sets the global API key once at startup.
func InitStripe(secretKey string) {
	stripe.Key = secretKey
}

func (StripeIntents) CreateIntent(ctx context.Context, params IntentParams) (*Intent, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.Context = ctx
	if params.ReceiptEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	for key, value := range params.Metadata {
		piParams.AddMetadata(key, value)
	}

	intent, err := paymentintent.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("stripe payment intent creation failed: %w", err)
	}
	return &Intent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}
