package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	"github.com/ecomstore/storefront-backend/pkg/metrics"
)

// Dispatcher routes a request to exactly one adapter keyed by payment method.
type Dispatcher struct {
	adapters map[enums.PaymentMethod]Adapter
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

// NewDispatcher registers the adapters. Registering a method twice is an error.
func NewDispatcher(m *metrics.PaymentMetrics, logg *logger.Logger, adapters ...Adapter) (*Dispatcher, error) {
	registered := make(map[enums.PaymentMethod]Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		method := adapter.Method()
		if !method.IsValid() {
			return nil, fmt.Errorf("adapter registered for unknown payment method %q", method)
		}
		if _, ok := registered[method]; ok {
			return nil, fmt.Errorf("duplicate adapter for payment method %q", method)
		}
		registered[method] = adapter
	}
	return &Dispatcher{adapters: registered, metrics: m, logg: logg}, nil
}

// Supports reports whether an adapter is registered for the method.
func (d *Dispatcher) Supports(method enums.PaymentMethod) bool {
	_, ok := d.adapters[method]
	return ok
}

// Dispatch calls the adapter for req.Method. Adapter failures are returned to the caller
// and never touch the order.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	adapter, ok := d.adapters[req.Method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method").WithDetails(map[string]any{
			"payment_method": req.Method,
		})
	}
	if req.Currency == "" {
		req.Currency = enums.CurrencyBRL
	}

	start := time.Now()
	result, err := adapter.Dispatch(ctx, req)
	d.metrics.ObserveDispatch(req.Method.String(), err, time.Since(start))

	if d.logg != nil {
		logCtx := d.logg.WithOrderID(ctx, req.OrderID.String())
		logCtx = d.logg.WithPaymentMethod(logCtx, req.Method.String())
		if err != nil {
			d.logg.Error(logCtx, "payment dispatch failed", err)
		} else {
			d.logg.Info(logCtx, "payment dispatched")
		}
	}
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "payment provider error")
		}
		return nil, err
	}
	result.Method = req.Method
	return result, nil
}
