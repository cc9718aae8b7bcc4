package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/api/controllers/orders"
	"github.com/ecomstore/storefront-backend/api/responses"
	"github.com/ecomstore/storefront-backend/api/validators"
	"github.com/ecomstore/storefront-backend/internal/coupons"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

type validateCouponRequest struct {
	Code     string          `json:"code" validate:"required,max=64"`
	UserID   string          `json:"user_id" validate:"max=128"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"dgte0"`
}

// ValidateCoupon answers 200 for both accepted and rejected coupons; rejections carry valid=false.
func ValidateCoupon(svc coupons.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon service unavailable"))
			return
		}

		var req validateCouponRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := orders.ResolveUserID(ctx, req.UserID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Validate(ctx, req.Code, userID, req.Subtotal)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
