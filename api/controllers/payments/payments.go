package payments

import (
	"net/http"
	"strings"

	"github.com/ecomstore/storefront-backend/api/controllers/orders"
	"github.com/ecomstore/storefront-backend/api/middleware"
	"github.com/ecomstore/storefront-backend/api/responses"
	"github.com/ecomstore/storefront-backend/api/validators"
	internalpayments "github.com/ecomstore/storefront-backend/internal/payments"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

// CustomerRequest carries optional payer details forwarded to the provider.
type CustomerRequest struct {
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (c *CustomerRequest) ToCustomer(userID string) internalpayments.Customer {
	customer := internalpayments.Customer{UserID: userID}
	if c != nil {
		customer.Name = strings.TrimSpace(c.Name)
		customer.Email = strings.TrimSpace(c.Email)
	}
	return customer
}

type payRequest struct {
	OrderID  string           `json:"order_id" validate:"required,uuid"`
	UserID   string           `json:"user_id" validate:"max=128"`
	Customer *CustomerRequest `json:"customer,omitempty"`
}

// Pay generates the payment artifact of one method for an existing pending order.
func Pay(method enums.PaymentMethod, svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var req payRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		orderID, err := validators.ParseUUID(req.OrderID, "order_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := orders.ResolveUserID(ctx, req.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithPaymentMethod(logg.WithOrderID(ctx, orderID.String()), string(method))
		}

		result, err := svc.Pay(ctx, internalpayments.PayInput{
			OrderID:   orderID,
			Method:    method,
			UserID:    userID,
			SessionID: middleware.SessionIDFromContext(ctx),
			Customer:  req.Customer.ToCustomer(userID),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
