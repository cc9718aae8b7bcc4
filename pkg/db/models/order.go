package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

// Order is a purchase with its totals and the payment artifact attached after dispatch.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          string              `gorm:"column:user_id;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	Currency        enums.Currency      `gorm:"column:currency;not null;default:'BRL'"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount        decimal.Decimal     `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	ShippingCost    decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(12,2);not null;default:0"`
	Tax             decimal.Decimal     `gorm:"column:tax;type:numeric(12,2);not null;default:0"`
	PaymentFee      decimal.Decimal     `gorm:"column:payment_fee;type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	CouponID        *uuid.UUID          `gorm:"column:coupon_id;type:uuid"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress  *types.Address      `gorm:"column:billing_address;type:jsonb"`
	PaymentData     *types.PaymentData  `gorm:"column:payment_data;type:jsonb"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id"`
	Notes           *string             `gorm:"column:notes"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderNumber is the customer-facing reference: "ECM" plus the last six characters of the id.
func (o Order) OrderNumber() string {
	return OrderNumberFor(o.ID)
}

// OrderNumberFor derives the customer-facing order reference from an order id.
func OrderNumberFor(id uuid.UUID) string {
	raw := id.String()
	return "ECM" + raw[len(raw)-6:]
}
