package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

// ItemInput is a client-priced line of a new order.
type ItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateOrderInput carries everything needed to persist an order.
type CreateOrderInput struct {
	UserID          string
	Items           []ItemInput
	ShippingAddress *types.Address
	BillingAddress  *types.Address
	PaymentMethod   enums.PaymentMethod
	Currency        enums.Currency
	CouponCode      string
	Discount        decimal.Decimal
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	PaymentFee      decimal.Decimal
	Total           *decimal.Decimal
	Notes           *string
}

// CreatedOrder is the response returned after a successful create.
type CreatedOrder struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	UserID        string              `json:"user_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Currency      enums.Currency      `json:"currency"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Discount      decimal.Decimal     `json:"discount"`
	ShippingCost  decimal.Decimal     `json:"shipping_cost"`
	Tax           decimal.Decimal     `json:"tax"`
	PaymentFee    decimal.Decimal     `json:"payment_fee"`
	Total         decimal.Decimal     `json:"total"`
	CouponID      *uuid.UUID          `json:"coupon_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderItemDTO is an order line as exposed over the API.
type OrderItemDTO struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// OrderDTO is the full order view including items and payment artifact.
type OrderDTO struct {
	CreatedOrder
	ShippingAddress types.Address      `json:"shipping_address"`
	BillingAddress  *types.Address     `json:"billing_address,omitempty"`
	PaymentData     *types.PaymentData `json:"payment_data,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	Items           []OrderItemDTO     `json:"items"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ListParams selects a page of a user's orders.
type ListParams struct {
	UserID string
	Limit  int
	Cursor string
}

// OrderList is a cursor page of orders, newest first.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func newCreatedOrder(order *models.Order) CreatedOrder {
	return CreatedOrder{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber(),
		UserID:        order.UserID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		Currency:      order.Currency,
		Subtotal:      order.Subtotal,
		Discount:      order.Discount,
		ShippingCost:  order.ShippingCost,
		Tax:           order.Tax,
		PaymentFee:    order.PaymentFee,
		Total:         order.Total,
		CouponID:      order.CouponID,
		CreatedAt:     order.CreatedAt,
	}
}

// NewOrderDTO maps a persisted order into its API view.
func NewOrderDTO(order *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}
	return OrderDTO{
		CreatedOrder:    newCreatedOrder(order),
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		PaymentData:     order.PaymentData,
		Notes:           order.Notes,
		Items:           items,
		UpdatedAt:       order.UpdatedAt,
	}
}
