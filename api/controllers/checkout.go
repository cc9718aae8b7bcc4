package controllers

import (
	"net/http"

	"github.com/ecomstore/storefront-backend/api/controllers/orders"
	"github.com/ecomstore/storefront-backend/api/controllers/payments"
	"github.com/ecomstore/storefront-backend/api/middleware"
	"github.com/ecomstore/storefront-backend/api/responses"
	"github.com/ecomstore/storefront-backend/api/validators"
	checkoutsvc "github.com/ecomstore/storefront-backend/internal/checkout"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

type checkoutRequest struct {
	orders.CreateOrderRequest
	Customer *payments.CustomerRequest `json:"customer,omitempty"`
}

// Checkout creates the order and dispatches its payment in one call.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input, err := req.ToInput(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Execute(ctx, checkoutsvc.CheckoutInput{
			Order:     input,
			Customer:  req.Customer.ToCustomer(input.UserID),
			SessionID: middleware.SessionIDFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}
