package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
)

// Repository reads the product catalog.
type Repository interface {
	Search(ctx context.Context, query SearchQuery) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Search filters active products; the caller normalizes limit, offset and sort.
func (r *repository) Search(ctx context.Context, q SearchQuery) ([]models.Product, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)

	term := strings.TrimSpace(q.Q)
	var pattern string
	if term != "" {
		pattern = "%" + escapeLike(term) + "%"
		base = base.Where("("+r.likeClause("name")+" OR "+r.likeClause("description")+")", pattern, pattern)
	}
	if category := strings.TrimSpace(q.Category); category != "" {
		base = base.Where("category = ?", category)
	}
	if brand := strings.TrimSpace(q.Brand); brand != "" {
		base = base.Where("brand = ?", brand)
	}
	if q.MinPrice != nil {
		base = base.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		base = base.Where("price <= ?", *q.MaxPrice)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderSQL, orderVars := r.orderBy(q.Sort, pattern)
	var products []models.Product
	err := base.Session(&gorm.Session{}).
		Clauses(clause.OrderBy{Expression: clause.Expr{SQL: orderSQL, Vars: orderVars, WithoutParentheses: true}}).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&products).Error
	return products, total, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// orderBy builds the ORDER BY list; id breaks ties so offsets stay stable.
func (r *repository) orderBy(sort enums.ProductSort, pattern string) (string, []any) {
	switch sort {
	case enums.ProductSortPriceAsc:
		return "price ASC, id ASC", nil
	case enums.ProductSortPriceDesc:
		return "price DESC, id ASC", nil
	case enums.ProductSortRating:
		return "rating DESC, review_count DESC, id ASC", nil
	case enums.ProductSortNewest:
		return "created_at DESC, id ASC", nil
	}
	if pattern != "" {
		return "CASE WHEN " + r.likeClause("name") + " THEN 0 ELSE 1 END, rating DESC, review_count DESC, id ASC", []any{pattern}
	}
	return "is_featured DESC, rating DESC, review_count DESC, id ASC", nil
}

// likeClause is a case-insensitive match; ILIKE on postgres, LOWER/LIKE elsewhere.
func (r *repository) likeClause(column string) string {
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		return column + ` ILIKE ? ESCAPE '\'`
	}
	return "LOWER(" + column + `) LIKE LOWER(?) ESCAPE '\'`
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
