package cart

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
)

// Owner selects a cart by user id or, for anonymous shoppers, by session id.
type Owner struct {
	UserID    string
	SessionID string
}

func (o Owner) empty() bool {
	return strings.TrimSpace(o.UserID) == "" && strings.TrimSpace(o.SessionID) == ""
}

// Repository clears pre-checkout cart lines once a payment is dispatched.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Clear deletes every cart line of the owner and returns how many were removed.
func (r *Repository) Clear(ctx context.Context, owner Owner) (int64, error) {
	if owner.empty() {
		return 0, nil
	}
	res := r.ownerScope(r.db.WithContext(ctx), owner).Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

func (r *Repository) ownerScope(db *gorm.DB, owner Owner) *gorm.DB {
	userID := strings.TrimSpace(owner.UserID)
	sessionID := strings.TrimSpace(owner.SessionID)
	switch {
	case userID != "" && sessionID != "":
		return db.Where("user_id = ? OR session_id = ?", userID, sessionID)
	case userID != "":
		return db.Where("user_id = ?", userID)
	default:
		return db.Where("session_id = ?", sessionID)
	}
}
