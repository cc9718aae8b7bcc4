package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/api/middleware"
	internalorders "github.com/ecomstore/storefront-backend/internal/orders"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

// ItemRequest accepts the unit price as either "price" or "unit_price".
type ItemRequest struct {
	ProductID string           `json:"product_id" validate:"required,max=64"`
	Quantity  int              `json:"quantity" validate:"required,min=1,max=999"`
	Price     *decimal.Decimal `json:"price,omitempty" validate:"omitempty,dgte0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,dgte0"`
}

func (i ItemRequest) unitPrice(index int) (decimal.Decimal, error) {
	switch {
	case i.Price == nil && i.UnitPrice == nil:
		return decimal.Zero, itemFieldError(index, "price", "is required")
	case i.Price == nil:
		return *i.UnitPrice, nil
	case i.UnitPrice != nil && !i.UnitPrice.Equal(*i.Price):
		return decimal.Zero, itemFieldError(index, "price", "disagrees with unit_price")
	}
	return *i.Price, nil
}

func itemFieldError(index int, field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid request body").
		WithDetails(map[string]any{fmt.Sprintf("items[%d].%s", index, field): message})
}

// CreateOrderRequest is the body of POST /api/v1/orders and the order part of checkout.
type CreateOrderRequest struct {
	UserID          string           `json:"user_id" validate:"max=128"`
	Items           []ItemRequest    `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingAddress *types.Address   `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address   `json:"billing_address,omitempty"`
	PaymentMethod   string           `json:"payment_method" validate:"required"`
	Currency        string           `json:"currency,omitempty" validate:"omitempty,len=3"`
	CouponCode      string           `json:"coupon_code,omitempty" validate:"max=64"`
	Discount        *decimal.Decimal `json:"discount,omitempty" validate:"omitempty,dgte0"`
	ShippingCost    *decimal.Decimal `json:"shipping_cost,omitempty" validate:"omitempty,dgte0"`
	Tax             *decimal.Decimal `json:"tax,omitempty" validate:"omitempty,dgte0"`
	PaymentFee      *decimal.Decimal `json:"payment_fee,omitempty" validate:"omitempty,dgte0"`
	Total           *decimal.Decimal `json:"total,omitempty" validate:"omitempty,dgte0"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// ToInput resolves the acting user and maps the request into the service input.
// A gateway-provided user id wins over the body; a conflicting body id is rejected.
func (r CreateOrderRequest) ToInput(ctx context.Context) (internalorders.CreateOrderInput, error) {
	userID, err := ResolveUserID(ctx, r.UserID)
	if err != nil {
		return internalorders.CreateOrderInput{}, err
	}

	method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(r.PaymentMethod)))
	if err != nil {
		return internalorders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").
			WithDetails(map[string]any{"payment_method": r.PaymentMethod})
	}

	input := internalorders.CreateOrderInput{
		UserID:          userID,
		ShippingAddress: r.ShippingAddress,
		BillingAddress:  r.BillingAddress,
		PaymentMethod:   method,
		CouponCode:      r.CouponCode,
		Discount:        valueOrZero(r.Discount),
		ShippingCost:    valueOrZero(r.ShippingCost),
		Tax:             valueOrZero(r.Tax),
		PaymentFee:      valueOrZero(r.PaymentFee),
		Total:           r.Total,
		Notes:           r.Notes,
	}
	if strings.TrimSpace(r.Currency) != "" {
		currency, err := enums.ParseCurrency(r.Currency)
		if err != nil {
			return internalorders.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").
				WithDetails(map[string]any{"currency": r.Currency})
		}
		input.Currency = currency
	}
	input.Items = make([]internalorders.ItemInput, 0, len(r.Items))
	for i, item := range r.Items {
		price, err := item.unitPrice(i)
		if err != nil {
			return internalorders.CreateOrderInput{}, err
		}
		input.Items = append(input.Items, internalorders.ItemInput{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}
	return input, nil
}

// ResolveUserID merges the body user id with the one set by the Identity middleware.
func ResolveUserID(ctx context.Context, bodyUserID string) (string, error) {
	bodyUserID = strings.TrimSpace(bodyUserID)
	ctxUserID := middleware.UserIDFromContext(ctx)
	switch {
	case ctxUserID == "":
		return bodyUserID, nil
	case bodyUserID == "" || bodyUserID == ctxUserID:
		return ctxUserID, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "user_id does not match the authenticated user")
	}
}

func valueOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
