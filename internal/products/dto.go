package product

import (
	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchQuery captures the supported filter knobs for product search.
type SearchQuery struct {
	Q        string
	Category string
	Brand    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     enums.ProductSort
	Limit    int
	Offset   int
}

// SearchResult is one offset page of matching products.
type SearchResult struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}
