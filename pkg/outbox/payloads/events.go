package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/pkg/enums"
)

// OrderCreatedEvent is emitted in the same transaction that persists the order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        string              `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Currency      enums.Currency      `json:"currency"`
	Total         decimal.Decimal     `json:"total"`
	ItemCount     int                 `json:"item_count"`
	CouponID      *uuid.UUID          `json:"coupon_id,omitempty"`
}

// PaymentDispatchedEvent is emitted once a payment artifact is attached to the order.
type PaymentDispatchedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Reference     string              `json:"reference"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
}

// PaymentStatusEvent reports a terminal payment outcome.
type PaymentStatusEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Reason        string              `json:"reason,omitempty"`
	OccurredAt    time.Time           `json:"occurred_at"`
}

// OrderCancelledEvent is emitted when an unpaid order is cancelled.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelled_at"`
}
