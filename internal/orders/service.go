package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/internal/coupons"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/outbox"
	"github.com/ecomstore/storefront-backend/pkg/outbox/payloads"
	"github.com/ecomstore/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service creates and reads orders.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*CreatedOrder, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	ListByUser(ctx context.Context, params ListParams) (*OrderList, error)
}

type service struct {
	repo    Repository
	coupons coupons.Service
	tx      txRunner
	outbox  outboxEmitter
	logg    *logger.Logger
}

// NewService wires the order service. coupons may be nil when coupon support is disabled.
func NewService(repo Repository, couponSvc coupons.Service, tx txRunner, outboxSvc outboxEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if outboxSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	return &service{
		repo:    repo,
		coupons: couponSvc,
		tx:      tx,
		outbox:  outboxSvc,
		logg:    logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*CreatedOrder, error) {
	if err := validateCreateInput(&input); err != nil {
		return nil, err
	}

	subtotal := Subtotal(input.Items)
	discount := input.Discount
	var couponID *uuid.UUID
	if code := coupons.NormalizeCode(input.CouponCode); code != "" {
		if s.coupons == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupon service unavailable")
		}
		result, err := s.coupons.Validate(ctx, code, input.UserID, subtotal)
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, result.Message).WithDetails(map[string]any{
				"coupon_code": code,
			})
		}
		discount = result.Discount
		id := result.Coupon.ID
		couponID = &id
	}

	totals := ComputeTotals(subtotal, discount, input.ShippingCost, input.Tax, input.PaymentFee)
	if input.Total != nil && !totals.Matches(*input.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total does not match computed total").WithDetails(map[string]any{
			"expected": totals.Total.StringFixed(2),
			"received": input.Total.StringFixed(2),
		})
	}

	shipping := input.ShippingAddress.Normalize()
	billing := shipping
	if input.BillingAddress != nil {
		billing = input.BillingAddress.Normalize()
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          input.UserID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		Currency:        input.Currency,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		ShippingCost:    totals.ShippingCost,
		Tax:             totals.Tax,
		PaymentFee:      totals.PaymentFee,
		Total:           totals.Total,
		CouponID:        couponID,
		ShippingAddress: shipping,
		BillingAddress:  &billing,
		Notes:           input.Notes,
		Items:           make([]models.OrderItem, 0, len(input.Items)),
	}
	for _, item := range input.Items {
		order.Items = append(order.Items, models.OrderItem{
			ID:         uuid.New(),
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.Round(2),
			TotalPrice: LineTotal(item),
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if couponID != nil {
			if err := s.coupons.Redeem(ctx, tx, *couponID, input.UserID, order.ID); err != nil {
				return err
			}
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Source: "api"},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber(),
				UserID:        order.UserID,
				PaymentMethod: order.PaymentMethod,
				Currency:      order.Currency,
				Total:         order.Total,
				ItemCount:     len(order.Items),
				CouponID:      couponID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       order.ID.String(),
			"user_id":        order.UserID,
			"payment_method": order.PaymentMethod,
		})
		s.logg.Info(logCtx, "order created")
	}

	created := newCreatedOrder(order)
	return &created, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListByUser(ctx context.Context, params ListParams) (*OrderList, error) {
	userID := strings.TrimSpace(params.UserID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	rows, next := pagination.Split(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	resp := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		resp.Orders = append(resp.Orders, NewOrderDTO(&rows[i]))
	}
	return resp, nil
}

func validateCreateInput(input *CreateOrderInput) error {
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "items are required")
	}
	if input.ShippingAddress == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping_address is required")
	}
	if input.PaymentMethod == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment_method is required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").WithDetails(map[string]any{
			"payment_method": input.PaymentMethod,
		})
	}
	if input.Currency == "" {
		input.Currency = enums.CurrencyBRL
	}
	if !input.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return itemError(i, "product_id is required")
		}
		if item.Quantity < 1 {
			return itemError(i, "quantity must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			return itemError(i, "price must not be negative")
		}
	}
	for field, value := range map[string]decimal.Decimal{
		"discount":      input.Discount,
		"shipping_cost": input.ShippingCost,
		"tax":           input.Tax,
		"payment_fee":   input.PaymentFee,
	} {
		if value.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" must not be negative")
		}
	}
	return nil
}

func itemError(index int, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{
		"item_index": index,
	})
}
