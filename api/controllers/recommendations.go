package controllers

import (
	"net/http"
	"strings"

	"github.com/ecomstore/storefront-backend/api/controllers/orders"
	"github.com/ecomstore/storefront-backend/api/responses"
	"github.com/ecomstore/storefront-backend/api/validators"
	"github.com/ecomstore/storefront-backend/internal/recommendations"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

// Recommendations serves GET /api/v1/recommendations?strategy=&user_id=&product_id=&limit=.
func Recommendations(svc recommendations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recommendation service unavailable"))
			return
		}
		query := r.URL.Query()

		strategy, err := enums.ParseRecommendationStrategy(strings.ToLower(strings.TrimSpace(query.Get("strategy"))))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid strategy").WithDetails(map[string]any{"field": "strategy"}))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", recommendations.DefaultLimit, 1, recommendations.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := orders.ResolveUserID(ctx, query.Get("user_id"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Recommend(ctx, recommendations.Request{
			Strategy:  strategy,
			UserID:    userID,
			ProductID: validators.SanitizeString(query.Get("product_id"), 64),
			Limit:     limit,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
