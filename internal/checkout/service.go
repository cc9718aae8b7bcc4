package checkout

import (
	"context"
	"fmt"

	"github.com/ecomstore/storefront-backend/internal/orders"
	"github.com/ecomstore/storefront-backend/internal/payments"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateOrderInput) (*orders.CreatedOrder, error)
}

type paymentDispatcher interface {
	Pay(ctx context.Context, input payments.PayInput) (*payments.PaymentResult, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*Result, error)
}

// CheckoutInput is an order request plus optional payer details for the provider.
type CheckoutInput struct {
	Order     orders.CreateOrderInput
	Customer  payments.Customer
	SessionID string
}

// Result carries the created order and the attached payment artifact.
type Result struct {
	Order   *orders.CreatedOrder    `json:"order"`
	Payment *payments.PaymentResult `json:"payment"`
}

type service struct {
	orders   orderCreator
	payments paymentDispatcher
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(orderSvc orderCreator, paymentSvc paymentDispatcher, logg *logger.Logger) (Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if paymentSvc == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &service{orders: orderSvc, payments: paymentSvc, logg: logg}, nil
}

// Execute creates the order, then dispatches its total to the chosen payment backend.
// When dispatch fails the order is kept and the returned error names it so payment can be retried.
func (s *service) Execute(ctx context.Context, input CheckoutInput) (*Result, error) {
	created, err := s.orders.Create(ctx, input.Order)
	if err != nil {
		return nil, err
	}

	customer := input.Customer
	if customer.UserID == "" {
		customer.UserID = created.UserID
	}
	payment, err := s.payments.Pay(ctx, payments.PayInput{
		OrderID:   created.OrderID,
		Method:    created.PaymentMethod,
		UserID:    created.UserID,
		SessionID: input.SessionID,
		Customer:  customer,
	})
	if err != nil {
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, created.OrderID.String())
			s.logg.Warn(logCtx, "checkout payment dispatch failed; order left pending")
		}
		return nil, partialFailure(err, created)
	}

	return &Result{Order: created, Payment: payment}, nil
}

func partialFailure(err error, created *orders.CreatedOrder) error {
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
	details["order_id"] = created.OrderID.String()
	details["order_number"] = created.OrderNumber
	details["order_created"] = true
	return typed.WithDetails(details)
}
