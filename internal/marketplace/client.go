// internal/marketplace/client.go
package marketplace

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dealhawk/dealhawk-backend/internal/models"
)

var ErrListingNotFound = errors.New("listing not found")

// ListingSnapshot is the authoritative view of a known listing URL.
type ListingSnapshot struct {
	Price        *float64
	Currency     string
	InStock      bool
	Sold         bool
	Discontinued bool
}

// CandidateListing is an ephemeral marketplace search result. It is not
// persisted until it survives the ingestion matcher.
type CandidateListing struct {
	ItemID       string
	URL          string
	Title        string
	Price        *float64
	Currency     string
	GTIN         string
	Brand        string
	MPN          string
	Condition    models.ConditionCategory
	FreeShipping bool

	SellerFeedbackPct   float64
	SellerFeedbackScore int64
	SellerTopRated      bool
}

// Key dedupes candidates across query variants: item id when the
// marketplace provides one, URL otherwise.
func (c CandidateListing) Key() string {
	if c.ItemID != "" {
		return c.ItemID
	}
	return c.URL
}

// StoreClient is the per-marketplace adapter contract.
type StoreClient interface {
	Name() string
	FetchByURL(ctx context.Context, url string) (*ListingSnapshot, error)
	SearchListings(ctx context.Context, query string, preferred models.ConditionCategory) ([]CandidateListing, error)
}

// VariantResolver is an optional StoreClient capability. Clients that can
// map a search result onto one of the product's variants implement it.
type VariantResolver interface {
	HasActiveVariants(ctx context.Context, productID uuid.UUID) (bool, error)
	ResolveVariant(ctx context.Context, productID uuid.UUID, candidate CandidateListing) (*uuid.UUID, error)
}
