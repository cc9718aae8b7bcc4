package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/ecomstore/storefront-backend/pkg/db"
	"github.com/ecomstore/storefront-backend/pkg/db/models"
	"github.com/ecomstore/storefront-backend/pkg/enums"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
)

const (
	MsgValid           = "Coupon applied"
	MsgInvalidCode     = "Invalid coupon code"
	MsgNotYetActive    = "Coupon is not yet active"
	MsgExpired         = "Coupon has expired"
	MsgUsageLimit      = "Coupon usage limit reached"
	MsgAlreadyUsed     = "You have already used this coupon"
	msgMinimumTemplate = "Minimum order amount of %s required"
)

// ValidationResult is returned for every lookup; business rejections are not errors.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Message  string          `json:"message"`
	Discount decimal.Decimal `json:"discount"`
	Coupon   *models.Coupon  `json:"coupon,omitempty"`
}

// Service validates and redeems coupons.
type Service interface {
	Validate(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*ValidationResult, error)
	Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID string, orderID uuid.UUID) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the coupon service.
func NewService(repo Repository, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "coupon repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, now: now}, nil
}

// NormalizeCode applies the canonical coupon code form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *service) Validate(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*ValidationResult, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return reject(MsgInvalidCode), nil
	}

	coupon, err := s.repo.FindActiveByCode(ctx, normalized)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if coupon == nil {
		return reject(MsgInvalidCode), nil
	}

	now := s.now()
	if now.Before(coupon.StartDate) {
		return reject(MsgNotYetActive), nil
	}
	if now.After(coupon.EndDate) {
		return reject(MsgExpired), nil
	}
	if coupon.MinimumAmount != nil && subtotal.LessThan(*coupon.MinimumAmount) {
		return reject(fmt.Sprintf(msgMinimumTemplate, coupon.MinimumAmount.StringFixed(2))), nil
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return reject(MsgUsageLimit), nil
	}

	userID = strings.TrimSpace(userID)
	if userID != "" {
		used, err := s.repo.HasUsage(ctx, coupon.ID, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon usage")
		}
		if used {
			return reject(MsgAlreadyUsed), nil
		}
	}

	return &ValidationResult{
		Valid:    true,
		Message:  MsgValid,
		Discount: CalculateDiscount(coupon, subtotal),
		Coupon:   coupon,
	}, nil
}

// Redeem claims one use of the coupon inside the caller's transaction.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, couponID uuid.UUID, userID string, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if couponID == uuid.Nil || orderID == uuid.Nil || strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon, order and user are required")
	}

	repo := s.repo.WithTx(tx)
	claimed, err := repo.IncrementUsage(ctx, couponID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment coupon usage")
	}
	if !claimed {
		return pkgerrors.New(pkgerrors.CodeConflict, MsgUsageLimit)
	}

	usage := &models.CouponUsage{
		CouponID: couponID,
		UserID:   strings.TrimSpace(userID),
		OrderID:  orderID,
		UsedAt:   s.now().UTC(),
	}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, MsgAlreadyUsed)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record coupon usage")
	}
	return nil
}

// CalculateDiscount applies the coupon to the subtotal. Percentage discounts are
// clamped to max_discount; fixed discounts are returned as-is.
func CalculateDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch coupon.DiscountType {
	case enums.DiscountTypePercentage:
		discount = subtotal.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100))
		if coupon.MaxDiscount != nil && discount.GreaterThan(*coupon.MaxDiscount) {
			discount = *coupon.MaxDiscount
		}
	case enums.DiscountTypeFixed:
		discount = coupon.DiscountValue
	default:
		return decimal.Zero
	}
	return discount.Round(2)
}

func reject(message string) *ValidationResult {
	return &ValidationResult{Valid: false, Message: message, Discount: decimal.Zero}
}
