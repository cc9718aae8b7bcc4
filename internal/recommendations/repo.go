package recommendations

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/internal/wishlist"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
)

const (
	trendingMinRating  = 4.0
	trendingMinReviews = 10
	generalMinRating   = 4.5
)

var similarPriceBand = decimal.RequireFromString("0.20")

// Affinity is the category/brand profile derived from a user's history.
type Affinity struct {
	Categories []string
	Brands     []string
	Purchased  []uuid.UUID
}

// Repository runs the catalog queries behind each strategy.
type Repository struct {
	db       *gorm.DB
	wishlist *wishlist.Repository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, wishlist: wishlist.NewRepository(db)}
}

func (r *Repository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
}

// UserAffinity collects categories and brands from delivered orders and wishlist entries.
func (r *Repository) UserAffinity(ctx context.Context, userID string) (*Affinity, error) {
	var purchasedRaw []string
	err := r.db.WithContext(ctx).
		Table("order_items AS oi").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.user_id = ? AND o.status = ?", userID, enums.OrderStatusDelivered).
		Distinct().
		Pluck("oi.product_id", &purchasedRaw).Error
	if err != nil {
		return nil, err
	}

	purchased := make([]uuid.UUID, 0, len(purchasedRaw))
	for _, raw := range purchasedRaw {
		if id, err := uuid.Parse(raw); err == nil {
			purchased = append(purchased, id)
		}
	}

	liked, err := r.wishlist.ProductIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := append(append([]uuid.UUID{}, purchased...), liked...)
	affinity := &Affinity{Purchased: purchased}
	if len(seen) == 0 {
		return affinity, nil
	}

	var profile []models.Product
	err = r.db.WithContext(ctx).
		Select("category", "brand").
		Where("id IN ?", seen).
		Find(&profile).Error
	if err != nil {
		return nil, err
	}
	categories := map[string]struct{}{}
	brands := map[string]struct{}{}
	for _, p := range profile {
		if _, ok := categories[p.Category]; !ok {
			categories[p.Category] = struct{}{}
			affinity.Categories = append(affinity.Categories, p.Category)
		}
		if _, ok := brands[p.Brand]; !ok {
			brands[p.Brand] = struct{}{}
			affinity.Brands = append(affinity.Brands, p.Brand)
		}
	}
	return affinity, nil
}

// ForAffinity returns products matching one of the categories and one of the brands, minus purchases.
func (r *Repository) ForAffinity(ctx context.Context, affinity *Affinity, limit int) ([]models.Product, error) {
	query := r.active(ctx).
		Where("category IN ?", affinity.Categories).
		Where("brand IN ?", affinity.Brands)
	if len(affinity.Purchased) > 0 {
		query = query.Where("id NOT IN ?", affinity.Purchased)
	}
	var out []models.Product
	err := query.Order("rating DESC").Order("id ASC").Limit(limit).Find(&out).Error
	return out, err
}

// Product loads the reference product; nil when missing or inactive.
func (r *Repository) Product(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var out []models.Product
	if err := r.active(ctx).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// Related returns products sharing the reference's category or brand.
func (r *Repository) Related(ctx context.Context, ref *models.Product, limit int) ([]models.Product, error) {
	var out []models.Product
	err := r.active(ctx).
		Where("(category = ? OR brand = ?)", ref.Category, ref.Brand).
		Where("id <> ?", ref.ID).
		Order("rating DESC").Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Similar returns same-category products priced within 20% of the reference.
func (r *Repository) Similar(ctx context.Context, ref *models.Product, limit int) ([]models.Product, error) {
	band := ref.Price.Mul(similarPriceBand)
	var out []models.Product
	err := r.active(ctx).
		Where("category = ?", ref.Category).
		Where("price >= ? AND price <= ?", ref.Price.Sub(band), ref.Price.Add(band)).
		Where("id <> ?", ref.ID).
		Order("rating DESC").Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Trending returns well-reviewed products ordered by review volume.
func (r *Repository) Trending(ctx context.Context, limit int) ([]models.Product, error) {
	var out []models.Product
	err := r.active(ctx).
		Where("rating >= ? AND review_count >= ?", trendingMinRating, trendingMinReviews).
		Order("review_count DESC").Order("rating DESC").Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// General returns featured or top-rated products.
func (r *Repository) General(ctx context.Context, limit int) ([]models.Product, error) {
	var out []models.Product
	err := r.active(ctx).
		Where("(is_featured = ? OR rating >= ?)", true, generalMinRating).
		Order("rating DESC").Order("review_count DESC").Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
