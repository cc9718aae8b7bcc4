package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecomstore/storefront-backend/pkg/enums"
)

// Coupon is a discount code with an active window and optional caps.
type Coupon struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code          string             `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Description   *string            `gorm:"column:description" json:"description,omitempty"`
	DiscountType  enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null" json:"discount_type"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null" json:"discount_value"`
	MaxDiscount   *decimal.Decimal   `gorm:"column:max_discount;type:numeric(12,2)" json:"max_discount,omitempty"`
	MinimumAmount *decimal.Decimal   `gorm:"column:minimum_amount;type:numeric(12,2)" json:"minimum_amount,omitempty"`
	StartDate     time.Time          `gorm:"column:start_date;not null" json:"start_date"`
	EndDate       time.Time          `gorm:"column:end_date;not null" json:"end_date"`
	UsageLimit    *int               `gorm:"column:usage_limit" json:"usage_limit,omitempty"`
	UsedCount     int                `gorm:"column:used_count;not null;default:0" json:"used_count"`
	IsActive      bool               `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// CouponUsage records a single redemption; (coupon_id, user_id) is unique.
type CouponUsage struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:coupon_usage_coupon_user_key"`
	UserID   string    `gorm:"column:user_id;not null;uniqueIndex:coupon_usage_coupon_user_key"`
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	UsedAt   time.Time `gorm:"column:used_at;autoCreateTime"`
}

// TableName pins the singular table name used by migrations.
func (CouponUsage) TableName() string {
	return "coupon_usage"
}
