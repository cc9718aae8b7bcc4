package product

import (
	"context"

	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
)

// Service exposes catalog search.
type Service interface {
	Search(ctx context.Context, query SearchQuery) (*SearchResult, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	if query.Limit <= 0 {
		query.Limit = DefaultSearchLimit
	}
	if query.Limit > MaxSearchLimit {
		query.Limit = MaxSearchLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	if query.MinPrice != nil && query.MaxPrice != nil && query.MinPrice.GreaterThan(*query.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price must not exceed max_price")
	}

	products, total, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search products")
	}
	return &SearchResult{
		Products: products,
		Total:    total,
		Limit:    query.Limit,
		Offset:   query.Offset,
	}, nil
}
