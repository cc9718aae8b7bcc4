package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

// CardAdapter creates a Stripe payment intent confirmed later by the client.
type CardAdapter struct {
	intents IntentClient
}

func NewCardAdapter(intents IntentClient) *CardAdapter {
	return &CardAdapter{intents: intents}
}

func (a *CardAdapter) Method() enums.PaymentMethod { return enums.PaymentMethodCard }

func (a *CardAdapter) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if a.intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments not configured")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount)),
		Currency: stripe.String(req.Currency.Lower()),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", req.OrderID.String())
	if req.Customer.UserID != "" {
		params.AddMetadata("user_id", req.Customer.UserID)
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}
	params.SetIdempotencyKey(fmt.Sprintf("order-%s-intent", req.OrderID))

	intent, err := a.intents.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "create payment intent")
	}
	if intent == nil || intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentFailed, "payment intent missing id")
	}

	intentID := intent.ID
	return &DispatchResult{
		Status: enums.PaymentStatusProcessing,
		Data: types.PaymentData{
			PaymentIntentID: intent.ID,
			ClientSecret:    intent.ClientSecret,
		},
		Reference:       intent.ID,
		PaymentIntentID: &intentID,
	}, nil
}
