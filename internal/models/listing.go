// internal/models/listing.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackedListing binds one marketplace listing to a Deal/Product (and
// optionally a variant) and carries the live price/status tracking state the
// refresh scheduler operates on.
type TrackedListing struct {
	BaseModel
	DealID         uuid.UUID         `json:"deal_id" gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID         `json:"product_id" gorm:"type:uuid;not null;index"`
	VariantID      *uuid.UUID        `json:"variant_id" gorm:"type:uuid"`
	Marketplace    string            `json:"marketplace" gorm:"size:50;not null;index"`
	ExternalItemID string            `json:"external_item_id" gorm:"size:100;index"`
	URL            string            `json:"url" gorm:"size:2048"`
	Price          *float64          `json:"price" gorm:"type:decimal(10,2)"`
	Currency       string            `json:"currency" gorm:"size:3;default:'USD'"`
	Condition      ConditionCategory `json:"condition" gorm:"type:varchar(20);default:''"`
	DiscountPct    *int              `json:"discount_pct"`
	Status         ListingStatus     `json:"status" gorm:"type:varchar(20);default:'active';index"`
	IsPrimary      bool              `json:"is_primary" gorm:"default:false"`
	LastCheckedAt  *time.Time        `json:"last_checked_at"`
	NextCheckAt    time.Time         `json:"next_check_at" gorm:"index;not null"`
	ErrorCount     int               `json:"error_count" gorm:"default:0"`
	Stale          bool              `json:"stale" gorm:"default:false"`

	// Relationships
	Deal    Deal    `json:"deal,omitempty" gorm:"foreignKey:DealID"`
	Product Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

// MinutesSinceLastCheck returns the staleness of the listing in minutes, or
// (0, false) if the listing has never been checked.
func (l *TrackedListing) MinutesSinceLastCheck(now time.Time) (float64, bool) {
	if l.LastCheckedAt == nil {
		return 0, false
	}
	return now.Sub(*l.LastCheckedAt).Minutes(), true
}
