// internal/repository/gorm.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealhawk/dealhawk-backend/internal/database"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) DueListings(ctx context.Context, limit int) ([]models.TrackedListing, error) {
	var listings []models.TrackedListing
	err := r.db.WithContext(ctx).
		Joins("JOIN deals ON deals.id = tracked_listings.deal_id AND deals.deleted_at IS NULL").
		Where("tracked_listings.status = ?", models.ListingStatusActive).
		Where("tracked_listings.next_check_at <= ?", time.Now()).
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("fetching due listings: %w", err)
	}
	return listings, nil
}

func (r *gormRepository) ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	result := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}

	for i := range products {
		result[products[i].ID] = &products[i]
	}
	return result, nil
}

func (r *gormRepository) DealByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	if err := r.db.WithContext(ctx).First(&deal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("deal %s not found", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &deal, nil
}

func (r *gormRepository) ListingByID(ctx context.Context, id uuid.UUID) (*models.TrackedListing, error) {
	var listing models.TrackedListing
	if err := r.db.WithContext(ctx).First(&listing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("listing %s not found", id)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &listing, nil
}

func (r *gormRepository) SaveListingCheck(ctx context.Context, listing *models.TrackedListing) error {
	updates := map[string]interface{}{
		"status":          listing.Status,
		"price":           listing.Price,
		"currency":        listing.Currency,
		"last_checked_at": listing.LastCheckedAt,
		"next_check_at":   listing.NextCheckAt,
		"error_count":     listing.ErrorCount,
		"stale":           listing.Stale,
	}
	if err := r.db.WithContext(ctx).Model(&models.TrackedListing{}).
		Where("id = ?", listing.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("saving listing check: %w", err)
	}
	return nil
}

func (r *gormRepository) AppendPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("appending price history: %w", err)
	}
	return nil
}

func (r *gormRepository) RecomputeBestListing(ctx context.Context, productID uuid.UUID) error {
	var best models.TrackedListing
	err := r.db.WithContext(ctx).
		Joins("JOIN deals ON deals.id = tracked_listings.deal_id AND deals.deleted_at IS NULL AND deals.status = ?", models.DealStatusActive).
		Where("tracked_listings.product_id = ?", productID).
		Where("tracked_listings.status = ?", models.ListingStatusActive).
		Where("tracked_listings.price IS NOT NULL").
		Order("tracked_listings.price ASC").
		First(&best).Error

	var pointer *uuid.UUID
	switch {
	case err == nil:
		pointer = &best.ID
	case errors.Is(err, gorm.ErrRecordNotFound):
		pointer = nil
	default:
		return fmt.Errorf("finding best listing: %w", err)
	}

	if err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("best_listing_id", pointer).Error; err != nil {
		return fmt.Errorf("updating best listing pointer: %w", err)
	}
	return nil
}

func (r *gormRepository) ExpireDealCascade(ctx context.Context, dealID uuid.UUID) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Model(&models.Deal{}).
			Where("id = ? AND status <> ?", dealID, models.DealStatusExpired).
			Update("status", models.DealStatusExpired).Error; err != nil {
			return fmt.Errorf("expiring deal: %w", err)
		}

		if err := tx.Model(&models.TrackedListing{}).
			Where("deal_id = ? AND status <> ?", dealID, models.ListingStatusExpired).
			Update("status", models.ListingStatusExpired).Error; err != nil {
			return fmt.Errorf("expiring deal listings: %w", err)
		}

		return nil
	})
}

func (r *gormRepository) DealsPastExpiration(ctx context.Context) ([]models.Deal, error) {
	var deals []models.Deal
	err := r.db.WithContext(ctx).
		Where("status = ?", models.DealStatusActive).
		Where("expiration_date IS NOT NULL AND expiration_date < ?", time.Now()).
		Find(&deals).Error
	if err != nil {
		return nil, fmt.Errorf("fetching expired deals: %w", err)
	}
	return deals, nil
}

func (r *gormRepository) EnsurePendingRemediation(ctx context.Context, listing *models.TrackedListing, reason string) (*models.ManualRemediationTask, error) {
	var task models.ManualRemediationTask
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND status = ?", listing.ID, models.RemediationStatusPending).
		First(&task).Error
	if err == nil {
		return &task, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("looking up remediation task: %w", err)
	}

	task = models.ManualRemediationTask{
		ListingID:   listing.ID,
		Marketplace: listing.Marketplace,
		URL:         listing.URL,
		Reason:      reason,
		Status:      models.RemediationStatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("creating remediation task: %w", err)
	}
	return &task, nil
}

func (r *gormRepository) PendingRemediationTasks(ctx context.Context) ([]models.ManualRemediationTask, error) {
	var tasks []models.ManualRemediationTask
	err := r.db.WithContext(ctx).
		Where("status = ?", models.RemediationStatusPending).
		Order("created_at ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("fetching remediation tasks: %w", err)
	}
	return tasks, nil
}

func (r *gormRepository) ListingExists(ctx context.Context, marketplace, itemID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TrackedListing{}).
		Where("marketplace = ? AND external_item_id = ?", marketplace, itemID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking listing existence: %w", err)
	}
	return count > 0, nil
}

func (r *gormRepository) CreateDealWithListing(ctx context.Context, deal *models.Deal, listing *models.TrackedListing) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := tx.Create(deal).Error; err != nil {
			return fmt.Errorf("creating deal: %w", err)
		}
		listing.DealID = deal.ID
		if err := tx.Create(listing).Error; err != nil {
			return fmt.Errorf("creating listing: %w", err)
		}
		return nil
	})
}

func (r *gormRepository) ActiveVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND active = ?", productID, true).
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("fetching variants: %w", err)
	}
	return variants, nil
}

func (r *gormRepository) ServiceEnabledProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("enable_service = ?", true).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("fetching service-enabled products: %w", err)
	}
	return products, nil
}

func (r *gormRepository) DealsForProduct(ctx context.Context, productID uuid.UUID) ([]models.Deal, error) {
	var deals []models.Deal
	err := r.db.WithContext(ctx).
		Preload("Listings").
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&deals).Error
	if err != nil {
		return nil, fmt.Errorf("fetching product deals: %w", err)
	}
	return deals, nil
}

func (r *gormRepository) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("recording click: %w", err)
	}
	return nil
}

func (r *gormRepository) ClickCountsSince(ctx context.Context, listingIDs []uuid.UUID, since time.Time) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(listingIDs))
	if len(listingIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ListingID uuid.UUID
		Count     int64
	}
	err := r.db.WithContext(ctx).Model(&models.ClickEvent{}).
		Select("listing_id, COUNT(*) as count").
		Where("listing_id IN ? AND created_at >= ?", listingIDs, since).
		Group("listing_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting clicks: %w", err)
	}

	for _, row := range rows {
		counts[row.ListingID] = row.Count
	}
	return counts, nil
}
