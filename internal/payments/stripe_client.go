package payments

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/ecomstore/storefront-backend/pkg/stripe"
)

// IntentClient is the slice of the Stripe API the card adapter calls.
type IntentClient interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeIntents struct {
	client *pkgstripe.Client
}

// NewStripeIntentClient returns nil when Stripe is not configured so the
// card adapter reports a dependency error instead of calling out.
func NewStripeIntentClient(client *pkgstripe.Client) IntentClient {
	if client == nil {
		return nil
	}
	return stripeIntents{client: client}
}

func (s stripeIntents) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.client.CreatePaymentIntent(ctx, params)
}

// MinorUnits converts a decimal amount to integer cents.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
