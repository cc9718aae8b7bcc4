package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry used by search and recommendations.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string          `gorm:"column:name;not null" json:"name"`
	Description *string         `gorm:"column:description" json:"description,omitempty"`
	Category    string          `gorm:"column:category;not null" json:"category"`
	Brand       string          `gorm:"column:brand;not null" json:"brand"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Rating      float64         `gorm:"column:rating;type:numeric(3,2);not null;default:0" json:"rating"`
	ReviewCount int             `gorm:"column:review_count;not null;default:0" json:"review_count"`
	IsFeatured  bool            `gorm:"column:is_featured;not null;default:false" json:"is_featured"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Stock       int             `gorm:"column:stock;not null;default:0" json:"stock"`
	ImageURL    *string         `gorm:"column:image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
