package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	"github.com/ecomstore/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	FindPendingPayments(ctx context.Context, method enums.PaymentMethod, createdBefore time.Time, after *pagination.Cursor, limit int) ([]models.Order, error)
	UpdatePaymentState(ctx context.Context, id uuid.UUID, filter PaymentStateFilter, updates map[string]any) (bool, error)
}

// PaymentStateFilter guards a conditional payment update.
type PaymentStateFilter struct {
	From            []enums.PaymentStatus
	WithoutArtifact bool
}
