package controllers

import (
	"net/http"
	"strings"

	"github.com/ecomstore/storefront-backend/api/responses"
	"github.com/ecomstore/storefront-backend/api/validators"
	product "github.com/ecomstore/storefront-backend/internal/products"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
)

const maxSearchTermLen = 200

// SearchProducts serves GET /api/v1/products/search.
func SearchProducts(svc product.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		query := r.URL.Query()

		sort, err := enums.ParseProductSort(strings.TrimSpace(query.Get("sort")))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid sort").WithDetails(map[string]any{"field": "sort"}))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", product.DefaultSearchLimit, 1, product.MaxSearchLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 10000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		minPrice, err := validators.ParseQueryDecimal(r, "min_price")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		maxPrice, err := validators.ParseQueryDecimal(r, "max_price")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Search(ctx, product.SearchQuery{
			Q:        validators.SanitizeString(query.Get("q"), maxSearchTermLen),
			Category: validators.SanitizeString(query.Get("category"), maxSearchTermLen),
			Brand:    validators.SanitizeString(query.Get("brand"), maxSearchTermLen),
			MinPrice: minPrice,
			MaxPrice: maxPrice,
			Sort:     sort,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
