// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dealhawk/dealhawk-backend/internal/models"
)

// Repository exposes exactly the persistence operations the refresh
// orchestrator and ingestion pipeline need. Implementations must be safe
// for concurrent use; worker goroutines share one instance.
type Repository interface {
	// DueListings returns up to limit active listings whose next check has
	// passed and whose parent deal is not deleted. Order is arbitrary;
	// scoring decides priority.
	DueListings(ctx context.Context, limit int) ([]models.TrackedListing, error)

	ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
	DealByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	ListingByID(ctx context.Context, id uuid.UUID) (*models.TrackedListing, error)

	// SaveListingCheck persists the refresh outcome for one listing as a
	// unit: status, price, last/next check, error count, stale marker.
	SaveListingCheck(ctx context.Context, listing *models.TrackedListing) error

	AppendPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error

	// RecomputeBestListing refreshes the product's denormalized best-deal
	// pointer. Callers treat failures as non-fatal.
	RecomputeBestListing(ctx context.Context, productID uuid.UUID) error

	// ExpireDealCascade transitions the deal and all its non-deleted
	// listings to expired. Idempotent: already-expired rows are untouched.
	ExpireDealCascade(ctx context.Context, dealID uuid.UUID) error

	DealsPastExpiration(ctx context.Context) ([]models.Deal, error)

	// EnsurePendingRemediation creates a pending manual task for the
	// listing, or returns the existing pending one.
	EnsurePendingRemediation(ctx context.Context, listing *models.TrackedListing, reason string) (*models.ManualRemediationTask, error)
	PendingRemediationTasks(ctx context.Context) ([]models.ManualRemediationTask, error)

	ListingExists(ctx context.Context, marketplace, itemID string) (bool, error)
	CreateDealWithListing(ctx context.Context, deal *models.Deal, listing *models.TrackedListing) error

	ActiveVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
	ServiceEnabledProducts(ctx context.Context) ([]models.Product, error)
	DealsForProduct(ctx context.Context, productID uuid.UUID) ([]models.Deal, error)

	RecordClick(ctx context.Context, event *models.ClickEvent) error
	ClickCountsSince(ctx context.Context, listingIDs []uuid.UUID, since time.Time) (map[uuid.UUID]int64, error)
}
