// internal/refresh/orchestrator.go
package refresh

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/dealhawk/dealhawk-backend/internal/clickstats"
	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/marketplace"
	"github.com/dealhawk/dealhawk-backend/internal/models"
	"github.com/dealhawk/dealhawk-backend/internal/repository"
	"github.com/dealhawk/dealhawk-backend/internal/scraper"
)

// Outcome classifies one listing's refresh result for aggregate reporting.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeExpired
	OutcomeSold
	OutcomeError
)

// Summary is the aggregate result of one refresh batch.
type Summary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Expired int `json:"expired"`
	Sold    int `json:"sold"`
	Errors  int `json:"errors"`
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeExpired:
		s.Expired++
	case OutcomeSold:
		s.Sold++
	case OutcomeError:
		s.Errors++
	default:
		s.Updated++
	}
}

// Orchestrator coordinates the refresh cycle: pool retrieval, scoring,
// bounded-concurrency processing, outcome application, and rescheduling.
type Orchestrator struct {
	repo     repository.Repository
	clicks   clickstats.Stats
	registry *marketplace.Registry
	scraper  *scraper.Scraper
	cfg      *config.Config
	log      *logrus.Entry
}

func NewOrchestrator(
	repo repository.Repository,
	clicks clickstats.Stats,
	registry *marketplace.Registry,
	scrape *scraper.Scraper,
	cfg *config.Config,
) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		clicks:   clicks,
		registry: registry,
		scraper:  scrape,
		cfg:      cfg,
		log:      logrus.WithField("component", "refresh"),
	}
}

// RefreshDeals processes one batch of due listings. Pool retrieval failure
// is fatal to the batch and returns a zero-progress summary; everything
// after that is isolated per listing.
func (o *Orchestrator) RefreshDeals(ctx context.Context, batchSize int) (Summary, error) {
	if batchSize <= 0 {
		batchSize = o.cfg.Refresh.BatchSize
	}

	poolLimit := batchSize * o.cfg.Refresh.PoolMultiplier
	if poolLimit > o.cfg.Refresh.PoolCap {
		poolLimit = o.cfg.Refresh.PoolCap
	}

	listings, err := o.repo.DueListings(ctx, poolLimit)
	if err != nil {
		o.log.WithError(err).Error("Failed to fetch due listings")
		return Summary{}, fmt.Errorf("fetching due listings: %w", err)
	}
	if len(listings) == 0 {
		return Summary{}, nil
	}

	pool, err := o.buildPool(ctx, listings)
	if err != nil {
		o.log.WithError(err).Error("Failed to build refresh pool")
		return Summary{}, err
	}

	batch := Rank(pool, batchSize, o.cfg.Scoring, time.Now())

	o.log.WithFields(logrus.Fields{
		"pool":  len(pool),
		"batch": len(batch),
	}).Info("Refreshing deal listings")

	outcomes := make([]Outcome, len(batch))
	sem := semaphore.NewWeighted(int64(o.cfg.Refresh.MaxConcurrency))
	var wg sync.WaitGroup

	dispatched := 0
	for i := range batch {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled: listings not yet dispatched keep their prior state
			// and stay out of the summary.
			break
		}
		dispatched++
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[idx] = o.processListing(ctx, &batch[idx])
		}(i)
	}

	wg.Wait()

	var summary Summary
	summary.Total = dispatched
	for _, outcome := range outcomes[:dispatched] {
		summary.add(outcome)
	}

	o.log.WithFields(logrus.Fields{
		"total":   summary.Total,
		"updated": summary.Updated,
		"expired": summary.Expired,
		"sold":    summary.Sold,
		"errors":  summary.Errors,
	}).Info("Refresh batch complete")

	return summary, ctx.Err()
}

func (o *Orchestrator) buildPool(ctx context.Context, listings []models.TrackedListing) ([]PoolEntry, error) {
	productIDs := make([]uuid.UUID, 0, len(listings))
	listingIDs := make([]uuid.UUID, 0, len(listings))
	seen := make(map[uuid.UUID]bool, len(listings))
	for i := range listings {
		listingIDs = append(listingIDs, listings[i].ID)
		if !seen[listings[i].ProductID] {
			seen[listings[i].ProductID] = true
			productIDs = append(productIDs, listings[i].ProductID)
		}
	}

	products, err := o.repo.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching pool products: %w", err)
	}

	// Click counts are a priority signal, not correctness: degrade to zero
	// on failure rather than aborting the batch.
	counts, err := o.clicks.CountsFor(ctx, listingIDs)
	if err != nil {
		o.log.WithError(err).Warn("Failed to load click counts, scoring without them")
		counts = map[uuid.UUID]clickstats.Counts{}
	}

	pool := make([]PoolEntry, 0, len(listings))
	for i := range listings {
		pool = append(pool, PoolEntry{
			Listing:  listings[i],
			Product:  products[listings[i].ProductID],
			Clicks:   counts[listings[i].ID],
			Volatile: o.registry.Info(listings[i].Marketplace).Volatile,
		})
	}
	return pool, nil
}

// processListing runs the per-listing state machine. A panic or error here
// never escapes to siblings; it becomes an Error outcome.
func (o *Orchestrator) processListing(ctx context.Context, entry *ScoredEntry) (outcome Outcome) {
	listing := &entry.Listing
	log := o.log.WithFields(logrus.Fields{
		"listing":     listing.ID,
		"marketplace": listing.Marketplace,
	})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Listing refresh panicked")
			outcome = OutcomeError
		}
	}()

	now := time.Now()

	// 1. Resolve context.
	deal, err := o.repo.DealByID(ctx, listing.DealID)
	if err != nil {
		log.WithError(err).Error("Failed to load parent deal")
		return o.recordError(ctx, listing, now)
	}

	url := listing.URL
	if url == "" {
		url = deal.SourceURL
	}
	if url == "" {
		log.Error("Listing has no usable URL")
		return o.recordError(ctx, listing, now)
	}

	// 2. Expiry check, unconditional and before any network fetch.
	if deal.ExpirationPassed(now) && listing.Status != models.ListingStatusExpired {
		if err := o.repo.ExpireDealCascade(ctx, deal.ID); err != nil {
			log.WithError(err).Error("Failed to expire deal")
			return o.recordError(ctx, listing, now)
		}
		o.recomputeBestDeal(ctx, listing.ProductID)
		return OutcomeExpired
	}

	// 3. Verification gate: unverified submissions are not continuously
	// price-tracked; defer far out without fetching.
	if !deal.AdminPosted {
		listing.NextCheckAt = now.Add(o.cfg.Refresh.UnverifiedDeferral)
		if err := o.repo.SaveListingCheck(ctx, listing); err != nil {
			log.WithError(err).Error("Failed to defer unverified listing")
			return OutcomeError
		}
		return OutcomeUpdated
	}

	// 4. Fetch.
	snapshot, fetchOutcome := o.fetch(ctx, listing, url, now, log)
	if snapshot == nil {
		return fetchOutcome
	}

	// 5-7. Apply outcome, recompute best deal, reschedule.
	return o.applySnapshot(ctx, entry, deal, snapshot, now, log)
}

// fetch picks the data source and retrieves the listing snapshot. A nil
// snapshot means the listing's outcome is already decided (deferral,
// escalation, or error) and persisted.
func (o *Orchestrator) fetch(ctx context.Context, listing *models.TrackedListing, url string, now time.Time, log *logrus.Entry) (*marketplace.ListingSnapshot, Outcome) {
	info := o.registry.Info(listing.Marketplace)

	var snapshot *marketplace.ListingSnapshot
	var err error

	switch {
	case info.APIIntegrated:
		client, ok := o.registry.Client(listing.Marketplace)
		if !ok {
			log.Error("Marketplace flagged API-integrated but no client registered")
			return nil, o.recordError(ctx, listing, now)
		}
		snapshot, err = client.FetchByURL(ctx, url)
	case info.ScrapingEnabled && info.Selectors.Configured():
		var result *scraper.Result
		result, err = o.scraper.Scrape(ctx, url, info.Selectors)
		if err == nil {
			if result.Blocked {
				return nil, o.escalateBlocked(ctx, listing, now, log)
			}
			snapshot = &marketplace.ListingSnapshot{
				Price:    result.Price,
				Currency: result.Currency,
				InStock:  result.InStock,
				Sold:     result.Sold,
			}
		} else if errors.Is(err, scraper.ErrNotFound) {
			err = marketplace.ErrListingNotFound
		}
	default:
		// No integration and no scraping: nothing to do but check back later.
		listing.NextCheckAt = now.Add(o.cfg.Refresh.NoSourceDeferral)
		if saveErr := o.repo.SaveListingCheck(ctx, listing); saveErr != nil {
			log.WithError(saveErr).Error("Failed to defer sourceless listing")
			return nil, OutcomeError
		}
		return nil, OutcomeUpdated
	}

	if errors.Is(err, marketplace.ErrBlocked) {
		return nil, o.escalateBlocked(ctx, listing, now, log)
	}
	if errors.Is(err, marketplace.ErrListingNotFound) {
		// The marketplace no longer knows this listing.
		return &marketplace.ListingSnapshot{Discontinued: true}, OutcomeUpdated
	}
	if err != nil {
		log.WithError(err).Warn("Listing fetch failed")
		return nil, o.recordError(ctx, listing, now)
	}
	if snapshot == nil || (snapshot.Price == nil && !snapshot.Sold && !snapshot.Discontinued && snapshot.InStock) {
		log.Warn("Fetch succeeded but returned no usable data")
		return nil, o.recordError(ctx, listing, now)
	}

	return snapshot, OutcomeUpdated
}

func (o *Orchestrator) applySnapshot(ctx context.Context, entry *ScoredEntry, deal *models.Deal, snapshot *marketplace.ListingSnapshot, now time.Time, log *logrus.Entry) Outcome {
	listing := &entry.Listing

	// Status precedence: Sold > OutOfStock > Discontinued (expires the
	// listing). In-stock data flips the listing back to active.
	newStatus := listing.Status
	switch {
	case snapshot.Sold:
		newStatus = models.ListingStatusSold
	case !snapshot.InStock && !snapshot.Discontinued:
		newStatus = models.ListingStatusOutOfStock
	case snapshot.Discontinued:
		newStatus = models.ListingStatusExpired
	case snapshot.InStock:
		newStatus = models.ListingStatusActive
	}

	statusChanged := newStatus != listing.Status
	if statusChanged {
		listing.Status = newStatus
	}

	priceChanged := snapshot.Price != nil && (listing.Price == nil || *listing.Price != *snapshot.Price)
	if priceChanged {
		listing.Price = snapshot.Price
		if snapshot.Currency != "" {
			listing.Currency = snapshot.Currency
		}
		if err := o.repo.AppendPriceHistory(ctx, &models.PriceHistoryEntry{
			ListingID:  listing.ID,
			Price:      *snapshot.Price,
			Currency:   listing.Currency,
			RecordedAt: now,
		}); err != nil {
			log.WithError(err).Error("Failed to append price history")
		}
	}

	// Successful fetch: the error streak is over.
	listing.ErrorCount = 0
	listing.Stale = false
	listing.LastCheckedAt = &now

	tier := AssignTier(listing, entry.Clicks.FiveMinute, entry.IsBestDeal(), o.cfg.Refresh.StaleErrorLimit)
	listing.NextCheckAt = NextCheckAt(now, tier, entry.Volatile, statusChanged, priceChanged, o.cfg.Tiers, rand.Float64())

	if err := o.repo.SaveListingCheck(ctx, listing); err != nil {
		log.WithError(err).Error("Failed to persist refresh outcome")
		return OutcomeError
	}

	if statusChanged {
		o.recomputeBestDeal(ctx, listing.ProductID)
	}

	switch listing.Status {
	case models.ListingStatusSold:
		return OutcomeSold
	case models.ListingStatusExpired:
		return OutcomeExpired
	default:
		return OutcomeUpdated
	}
}

// recordError applies the recoverable-per-item policy: bump the error
// count, schedule a medium retry, and mark the listing stale once the
// streak crosses the configured limit.
func (o *Orchestrator) recordError(ctx context.Context, listing *models.TrackedListing, now time.Time) Outcome {
	listing.ErrorCount++
	if listing.ErrorCount > o.cfg.Refresh.StaleErrorLimit {
		listing.Stale = true
	}
	listing.LastCheckedAt = &now
	listing.NextCheckAt = now.Add(o.cfg.Refresh.ErrorRetryAfter)

	if err := o.repo.SaveListingCheck(ctx, listing); err != nil {
		o.log.WithError(err).WithField("listing", listing.ID).Error("Failed to persist error outcome")
	}
	return OutcomeError
}

// escalateBlocked converts a bot-protection block into exactly one pending
// manual task and a long deferral. The listing is healthy as far as we
// know, so this counts as Updated, not Error.
func (o *Orchestrator) escalateBlocked(ctx context.Context, listing *models.TrackedListing, now time.Time, log *logrus.Entry) Outcome {
	if _, err := o.repo.EnsurePendingRemediation(ctx, listing, "bot protection detected"); err != nil {
		log.WithError(err).Error("Failed to create remediation task")
	}

	listing.LastCheckedAt = &now
	listing.NextCheckAt = now.Add(o.cfg.Refresh.BotBlockRetryAfter)
	if err := o.repo.SaveListingCheck(ctx, listing); err != nil {
		log.WithError(err).Error("Failed to defer blocked listing")
		return OutcomeError
	}

	log.Info("Listing deferred to manual remediation")
	return OutcomeUpdated
}

// recomputeBestDeal is best-effort: the primary state is already durable,
// so a failed pointer refresh is logged and swallowed.
func (o *Orchestrator) recomputeBestDeal(ctx context.Context, productID uuid.UUID) {
	if err := o.repo.RecomputeBestListing(ctx, productID); err != nil {
		o.log.WithError(err).WithField("product", productID).Warn("Best-deal recomputation failed")
	}
}
