package product

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/pkg/db/dbtest"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
)

func strPtr(v string) *string { return &v }

func seedProduct(t *testing.T, db *gorm.DB, p models.Product) models.Product {
	t.Helper()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedCatalog(t *testing.T, db *gorm.DB) map[string]models.Product {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := map[string]models.Product{}
	out["phone"] = seedProduct(t, db, models.Product{Name: "Galaxy Phone", Description: strPtr("android smartphone"), Category: "phones", Brand: "samsung", Price: decimal.NewFromInt(1200), Rating: 4.6, ReviewCount: 40, IsActive: true, CreatedAt: base})
	out["case"] = seedProduct(t, db, models.Product{Name: "Phone Case", Description: strPtr("silicone"), Category: "accessories", Brand: "samsung", Price: decimal.NewFromInt(50), Rating: 4.1, ReviewCount: 12, IsActive: true, CreatedAt: base.Add(time.Hour)})
	out["charger"] = seedProduct(t, db, models.Product{Name: "Fast Charger", Description: strPtr("works with any phone"), Category: "accessories", Brand: "anker", Price: decimal.NewFromInt(90), Rating: 4.8, ReviewCount: 5, IsActive: true, CreatedAt: base.Add(2 * time.Hour)})
	hidden := seedProduct(t, db, models.Product{Name: "Old Phone", Category: "phones", Brand: "nokia", Price: decimal.NewFromInt(100), Rating: 3, IsActive: true, CreatedAt: base})
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", hidden.ID).Update("is_active", false).Error)
	return out
}

func names(products []models.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.Name)
	}
	return out
}

func TestSearchMatchesNameAndDescription(t *testing.T) {
	db := dbtest.Open(t)
	seedCatalog(t, db)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), SearchQuery{Q: "PHONE"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	// name matches rank ahead of description-only matches
	assert.Equal(t, []string{"Galaxy Phone", "Phone Case", "Fast Charger"}, names(res.Products))
	assert.Equal(t, DefaultSearchLimit, res.Limit)
}

func TestSearchFiltersAndSorts(t *testing.T) {
	db := dbtest.Open(t)
	seedCatalog(t, db)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	minPrice := decimal.NewFromInt(60)
	res, err := svc.Search(context.Background(), SearchQuery{Category: "accessories", MinPrice: &minPrice})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fast Charger"}, names(res.Products))

	res, err = svc.Search(context.Background(), SearchQuery{Sort: enums.ProductSortPriceAsc})
	require.NoError(t, err)
	assert.Equal(t, []string{"Phone Case", "Fast Charger", "Galaxy Phone"}, names(res.Products))

	res, err = svc.Search(context.Background(), SearchQuery{Sort: enums.ProductSortNewest, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, []string{"Phone Case"}, names(res.Products))

	res, err = svc.Search(context.Background(), SearchQuery{Brand: "samsung", Sort: enums.ProductSortRating})
	require.NoError(t, err)
	assert.Equal(t, []string{"Galaxy Phone", "Phone Case"}, names(res.Products))
}

func TestSearchEscapesWildcards(t *testing.T) {
	db := dbtest.Open(t)
	seedCatalog(t, db)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	res, err := svc.Search(context.Background(), SearchQuery{Q: "%"})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
}

func TestSearchRejectsInvertedPriceRange(t *testing.T) {
	db := dbtest.Open(t)
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(5)
	_, err = svc.Search(context.Background(), SearchQuery{MinPrice: &lo, MaxPrice: &hi})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
