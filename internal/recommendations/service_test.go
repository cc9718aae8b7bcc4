package recommendations

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"github.com/ecomstore/storefront-backend/pkg/types"
)

type catalogFixture struct {
	db       *gorm.DB
	products map[string]models.Product
}

func addProduct(t *testing.T, db *gorm.DB, name, category, brand, price string, rating float64, reviews int, featured bool) models.Product {
	t.Helper()
	p := models.Product{
		ID:          uuid.New(),
		Name:        name,
		Category:    category,
		Brand:       brand,
		Price:       decimal.RequireFromString(price),
		Rating:      rating,
		ReviewCount: reviews,
		IsFeatured:  featured,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func newCatalog(t *testing.T) catalogFixture {
	t.Helper()
	db := dbtest.Open(t)
	f := catalogFixture{db: db, products: map[string]models.Product{}}
	add := func(name, category, brand, price string, rating float64, reviews int, featured bool) {
		f.products[name] = addProduct(t, db, name, category, brand, price, rating, reviews, featured)
	}
	add("runner", "shoes", "nike", "100", 4.2, 30, false)
	add("trail", "shoes", "nike", "115", 4.7, 8, false)
	add("court", "shoes", "adidas", "90", 3.9, 50, false)
	add("luxury", "shoes", "gucci", "900", 4.9, 2, false)
	add("cap", "hats", "nike", "30", 4.0, 12, true)
	add("beanie", "hats", "puma", "20", 3.5, 4, false)
	return f
}

func (f catalogFixture) deliver(t *testing.T, userID string, product models.Product, status enums.OrderStatus) {
	t.Helper()
	order := models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          status,
		PaymentStatus:   enums.PaymentStatusCompleted,
		PaymentMethod:   enums.PaymentMethodCard,
		Currency:        enums.CurrencyBRL,
		Subtotal:        product.Price,
		Total:           product.Price,
		ShippingAddress: types.Address{Name: "A", Street: "B", City: "C", State: "D", PostalCode: "E"},
		Items: []models.OrderItem{{
			ID: uuid.New(), ProductID: product.ID.String(), Quantity: 1, UnitPrice: product.Price, TotalPrice: product.Price,
		}},
	}
	require.NoError(t, f.db.Create(&order).Error)
}

func productNames(result *Result) []string {
	out := make([]string, 0, len(result.Products))
	for _, p := range result.Products {
		out = append(out, p.Name)
	}
	return out
}

func newTestService(t *testing.T, repo catalog, cache cacheStore) Service {
	t.Helper()
	svc, err := NewService(repo, cache, nil)
	require.NoError(t, err)
	return svc
}

func TestGeneralStrategy(t *testing.T) {
	f := newCatalog(t)
	svc := newTestService(t, NewRepository(f.db), nil)

	result, err := svc.Recommend(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, enums.RecommendationGeneral, result.Strategy)
	assert.Equal(t, []string{"luxury", "trail", "cap"}, productNames(result))
}

func TestTrendingStrategy(t *testing.T) {
	f := newCatalog(t)
	svc := newTestService(t, NewRepository(f.db), nil)

	result, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationTrending})
	require.NoError(t, err)
	assert.Equal(t, []string{"runner", "cap"}, productNames(result))
}

func TestProductAndSimilarStrategies(t *testing.T) {
	f := newCatalog(t)
	svc := newTestService(t, NewRepository(f.db), nil)
	ref := f.products["runner"].ID.String()

	related, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationProduct, ProductID: ref})
	require.NoError(t, err)
	assert.Equal(t, []string{"luxury", "trail", "cap", "court"}, productNames(related))

	similar, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationSimilar, ProductID: ref})
	require.NoError(t, err)
	assert.False(t, similar.Fallback)
	assert.Equal(t, []string{"trail", "court"}, productNames(similar))
}

func TestUserStrategyUsesDeliveredOrdersAndWishlist(t *testing.T) {
	f := newCatalog(t)
	f.deliver(t, "u1", f.products["runner"], enums.OrderStatusDelivered)
	f.deliver(t, "u1", f.products["beanie"], enums.OrderStatusShipped)
	require.NoError(t, f.db.Create(&models.WishlistItem{ID: uuid.New(), UserID: "u1", ProductID: f.products["cap"].ID}).Error)
	svc := newTestService(t, NewRepository(f.db), nil)

	result, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationUser, UserID: "u1"})
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	// shoes+hats from nike, minus the delivered runner
	assert.Equal(t, []string{"trail", "cap"}, productNames(result))
}

type failingCatalog struct {
	*Repository
}

func (failingCatalog) UserAffinity(context.Context, string) (*Affinity, error) {
	return nil, errors.New("orders table unavailable")
}

func (failingCatalog) Product(context.Context, uuid.UUID) (*models.Product, error) {
	return nil, errors.New("products table unavailable")
}

func TestFallbackEqualsGeneral(t *testing.T) {
	f := newCatalog(t)
	repo := NewRepository(f.db)
	svc := newTestService(t, failingCatalog{Repository: repo}, nil)

	general, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationGeneral, Limit: 2})
	require.NoError(t, err)

	requests := []Request{
		{Strategy: enums.RecommendationUser, UserID: "u1", Limit: 2},
		{Strategy: enums.RecommendationProduct, ProductID: uuid.NewString(), Limit: 2},
		{Strategy: enums.RecommendationSimilar, ProductID: "not-a-uuid", Limit: 2},
		{Strategy: enums.RecommendationUser, Limit: 2},
	}
	for _, req := range requests {
		t.Run(fmt.Sprintf("%s_%s%s", req.Strategy, req.UserID, req.ProductID), func(t *testing.T) {
			result, err := svc.Recommend(context.Background(), req)
			require.NoError(t, err)
			assert.True(t, result.Fallback)
			assert.Equal(t, enums.RecommendationGeneral, result.Strategy)
			assert.Equal(t, req.Strategy, result.Requested)
			assert.Equal(t, productNames(general), productNames(result))
		})
	}
}

func TestUserWithoutHistoryFallsBack(t *testing.T) {
	f := newCatalog(t)
	svc := newTestService(t, NewRepository(f.db), nil)

	result, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationUser, UserID: "nobody"})
	require.NoError(t, err)
	assert.True(t, result.Fallback)
}

func TestRecommendRejectsUnknownStrategy(t *testing.T) {
	f := newCatalog(t)
	svc := newTestService(t, NewRepository(f.db), nil)
	_, err := svc.Recommend(context.Background(), Request{Strategy: "random"})
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(500))
	assert.Equal(t, 7, NormalizeLimit(7))
}

type memoryCache struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) CacheKey(parts ...string) string {
	kept := []string{"sf", "cache"}
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

func TestRecommendCachesResults(t *testing.T) {
	f := newCatalog(t)
	cache := newMemoryCache()
	svc := newTestService(t, NewRepository(f.db), cache)

	first, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationTrending, Limit: 5})
	require.NoError(t, err)
	key := "sf:cache:reco:trending:5"
	require.Contains(t, cache.values, key)
	assert.Equal(t, CacheTTL, cache.ttls[key])

	require.NoError(t, f.db.Exec("DELETE FROM products").Error)
	second, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationTrending, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, productNames(first), productNames(second))

	cache.getErr = errors.New("connection refused")
	third, err := svc.Recommend(context.Background(), Request{Strategy: enums.RecommendationTrending, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, third.Products)
}
