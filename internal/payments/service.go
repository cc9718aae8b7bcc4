package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/internal/cart"
	"github.com/ecomstore/storefront-backend/internal/orders"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/types"
)

// PayInput requests a payment artifact for an existing order. SessionID names
// an anonymous cart to clear alongside the user's.
type PayInput struct {
	OrderID   uuid.UUID
	Method    enums.PaymentMethod
	UserID    string
	SessionID string
	Customer  Customer
}

// PaymentResult is returned by the per-method payment endpoints and checkout.
type PaymentResult struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	Method        enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      enums.Currency      `json:"currency"`
	PaymentData   types.PaymentData   `json:"payment_data"`
	Replayed      bool                `json:"replayed,omitempty"`
}

// Service dispatches payments for persisted orders.
type Service interface {
	Pay(ctx context.Context, input PayInput) (*PaymentResult, error)
}

type service struct {
	orders     orders.Repository
	dispatcher *Dispatcher
	reconciler *Reconciler
	logg       *logger.Logger
}

func NewService(repo orders.Repository, dispatcher *Dispatcher, reconciler *Reconciler, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment dispatcher required")
	}
	if reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment reconciler required")
	}
	return &service{orders: repo, dispatcher: dispatcher, reconciler: reconciler, logg: logg}, nil
}

// Pay dispatches the order total to the adapter for input.Method and attaches the artifact.
// An order that already carries an artifact returns it unchanged.
func (s *service) Pay(ctx context.Context, input PayInput) (*PaymentResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if userID := strings.TrimSpace(input.UserID); userID != "" && userID != order.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentMethod != input.Method {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment method does not match order").WithDetails(map[string]any{
			"order_id":       order.ID.String(),
			"payment_method": order.PaymentMethod,
		})
	}
	if order.PaymentData != nil {
		result := newPaymentResult(order, *order.PaymentData)
		result.Replayed = true
		return result, nil
	}
	if order.PaymentStatus != enums.PaymentStatusPending || order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").WithDetails(map[string]any{
			"order_id":       order.ID.String(),
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
		})
	}

	customer := input.Customer
	if customer.UserID == "" {
		customer.UserID = order.UserID
	}
	if customer.Name == "" {
		customer.Name = order.ShippingAddress.Name
	}

	dispatched, err := s.dispatcher.Dispatch(ctx, DispatchRequest{
		OrderID:        order.ID,
		Method:         order.PaymentMethod,
		Amount:         order.Total,
		Currency:       order.Currency,
		Customer:       customer,
		OrderCreatedAt: order.CreatedAt,
	})
	if err != nil {
		return nil, withOrderDetails(err, order.ID)
	}

	owner := cart.Owner{UserID: order.UserID, SessionID: strings.TrimSpace(input.SessionID)}
	if err := s.reconciler.AttachArtifact(ctx, order, dispatched, owner); err != nil {
		return nil, withOrderDetails(err, order.ID)
	}
	return newPaymentResult(order, dispatched.Data), nil
}

func newPaymentResult(order *models.Order, data types.PaymentData) *PaymentResult {
	return &PaymentResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber(),
		Method:        order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Amount:        order.Total,
		Currency:      order.Currency,
		PaymentData:   data,
	}
}

// withOrderDetails tags an error with the order id so the client can retry payment.
func withOrderDetails(err error, orderID uuid.UUID) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "payment dispatch failed")
	}
	details := map[string]any{}
	if existing, ok := typed.Details().(map[string]any); ok {
		for k, v := range existing {
			details[k] = v
		}
	}
	details["order_id"] = orderID.String()
	return typed.WithDetails(details)
}
