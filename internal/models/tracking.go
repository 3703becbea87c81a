// internal/models/tracking.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceHistoryEntry is append-only: one row per observed price change,
// never mutated or deleted.
type PriceHistoryEntry struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ListingID  uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;index"`
	Price      float64   `json:"price" gorm:"type:decimal(10,2);not null"`
	Currency   string    `json:"currency" gorm:"size:3;default:'USD'"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index;not null"`
}

// ManualRemediationTask is raised when automated fetch is blocked. At most
// one pending task exists per listing; re-blocking reuses it.
type ManualRemediationTask struct {
	BaseModel
	ListingID   uuid.UUID         `json:"listing_id" gorm:"type:uuid;not null;index"`
	Marketplace string            `json:"marketplace" gorm:"size:50"`
	URL         string            `json:"url" gorm:"size:2048"`
	Reason      string            `json:"reason" gorm:"size:255"`
	Status      RemediationStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ResolvedAt  *time.Time        `json:"resolved_at"`
}

// ClickEvent backs the 7-day click window; the 5-minute window is served
// from Redis counters.
type ClickEvent struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ListingID uuid.UUID `json:"listing_id" gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID `json:"product_id" gorm:"type:uuid;index"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
