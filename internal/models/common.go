// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type ListingStatus string

const (
	ListingStatusActive     ListingStatus = "active"
	ListingStatusExpired    ListingStatus = "expired"
	ListingStatusSold       ListingStatus = "sold"
	ListingStatusOutOfStock ListingStatus = "out_of_stock"
)

// Terminal reports whether a listing in this status is permanently done
// and must never re-enter the refresh pool.
func (s ListingStatus) Terminal() bool {
	return s == ListingStatusExpired || s == ListingStatusSold
}

type DealStatus string

const (
	DealStatusActive  DealStatus = "active"
	DealStatusExpired DealStatus = "expired"
)

type ConditionCategory string

const (
	ConditionUnknown     ConditionCategory = ""
	ConditionNew         ConditionCategory = "new"
	ConditionOpenBox     ConditionCategory = "open_box"
	ConditionRefurbished ConditionCategory = "refurbished"
	ConditionUsed        ConditionCategory = "used"
)

type RemediationStatus string

const (
	RemediationStatusPending  RemediationStatus = "pending"
	RemediationStatusResolved RemediationStatus = "resolved"
	RemediationStatusIgnored  RemediationStatus = "ignored"
)
