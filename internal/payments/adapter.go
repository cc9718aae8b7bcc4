package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

// Customer identifies the payer for providers that need it.
type Customer struct {
	UserID string
	Name   string
	Email  string
}

// DispatchRequest asks a payment backend to produce an artifact for an order.
type DispatchRequest struct {
	OrderID        uuid.UUID
	Method         enums.PaymentMethod
	Amount         decimal.Decimal
	Currency       enums.Currency
	Customer       Customer
	OrderCreatedAt time.Time
}

// DispatchResult is the artifact produced by an adapter.
type DispatchResult struct {
	Method          enums.PaymentMethod
	Status          enums.PaymentStatus
	Data            types.PaymentData
	Reference       string
	ExpiresAt       *time.Time
	PaymentIntentID *string
}

// Adapter produces the payment artifact for one method.
type Adapter interface {
	Method() enums.PaymentMethod
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
}
