// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	Title              string            `json:"title" gorm:"size:255;not null"`
	Brand              string            `json:"brand" gorm:"size:100;index"`
	CanonicalQuery     string            `json:"canonical_query" gorm:"size:255"`
	MSRP               *float64          `json:"msrp" gorm:"type:decimal(10,2)"`
	PreferredCondition ConditionCategory `json:"preferred_condition" gorm:"type:varchar(20);default:''"`
	NegativeKeywords   pq.StringArray    `json:"negative_keywords" gorm:"type:text[]"`
	BestListingID      *uuid.UUID        `json:"best_listing_id" gorm:"type:uuid"`
	EnableService      bool              `json:"enable_service" gorm:"default:true;index"`
	Metadata           JSONB             `json:"metadata,omitempty" gorm:"type:jsonb"`

	// Relationships
	Variants []ProductVariant `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	Deals    []Deal           `json:"deals,omitempty" gorm:"foreignKey:ProductID"`
}

type ProductVariant struct {
	BaseModel
	ProductID uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	SKU       string    `json:"sku" gorm:"size:100;index"`
	Active    bool      `json:"active" gorm:"default:true"`
}
