// Package wishlist reads which products a shopper liked. Recommendations
// use it as an affinity signal; the storefront owns the writes.
package wishlist

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ProductIDs returns liked products, most recent like first.
func (r *Repository) ProductIDs(ctx context.Context, userID string) ([]uuid.UUID, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.WishlistItem{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Pluck("product_id", &ids).Error
	return ids, err
}
