// internal/models/deal.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Deal struct {
	BaseModel
	ProductID      uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	SubmittedByID  *uuid.UUID `json:"submitted_by_id" gorm:"type:uuid"`
	AdminPosted    bool       `json:"admin_posted" gorm:"default:false"`
	Status         DealStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	ExpirationDate *time.Time `json:"expiration_date" gorm:"index"`
	SourceURL      string     `json:"source_url" gorm:"size:2048"`

	// Relationships
	Product  Product          `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Listings []TrackedListing `json:"listings,omitempty" gorm:"foreignKey:DealID"`
}

// ExpirationPassed reports whether the deal carries a hard expiration that
// is already behind the given instant.
func (d *Deal) ExpirationPassed(now time.Time) bool {
	return d.ExpirationDate != nil && d.ExpirationDate.Before(now)
}
