// internal/refresh/scorer.go
package refresh

import (
	"sort"
	"time"

	"github.com/dealhawk/dealhawk-backend/internal/clickstats"
	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

// PoolEntry is one due listing with the context the scorer needs: owning
// product, click windows, and marketplace volatility.
type PoolEntry struct {
	Listing  models.TrackedListing
	Product  *models.Product
	Clicks   clickstats.Counts
	Volatile bool
}

type ScoredEntry struct {
	PoolEntry
	Score float64
}

// IsBestDeal reports whether this listing is the product's current
// best-deal pointer.
func (e *PoolEntry) IsBestDeal() bool {
	return e.Product != nil && e.Product.BestListingID != nil && *e.Product.BestListingID == e.Listing.ID
}

// Rank scores the due pool and returns the top batchSize entries ordered by
// score descending, ties broken by oldest scheduled check first. Listings
// whose product is missing, soft-deleted, or service-disabled are dropped
// before scoring; the expiry sweep still covers them.
func Rank(pool []PoolEntry, batchSize int, cfg config.ScoringConfig, now time.Time) []ScoredEntry {
	scored := make([]ScoredEntry, 0, len(pool))

	var maxWeekClicks int64
	for i := range pool {
		if !eligible(&pool[i]) {
			continue
		}
		if pool[i].Clicks.SevenDay > maxWeekClicks {
			maxWeekClicks = pool[i].Clicks.SevenDay
		}
	}

	for i := range pool {
		if !eligible(&pool[i]) {
			continue
		}
		scored = append(scored, ScoredEntry{
			PoolEntry: pool[i],
			Score:     score(&pool[i], maxWeekClicks, cfg, now),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Listing.NextCheckAt.Before(scored[j].Listing.NextCheckAt)
	})

	if batchSize > 0 && len(scored) > batchSize {
		scored = scored[:batchSize]
	}
	return scored
}

func eligible(e *PoolEntry) bool {
	return e.Product != nil && e.Product.EnableService && !e.Product.DeletedAt.Valid
}

// score is a weighted sum of independent signals; each weight contributes
// only when its condition holds.
func score(e *PoolEntry, maxWeekClicks int64, cfg config.ScoringConfig, now time.Time) float64 {
	var total float64
	listing := &e.Listing

	if e.Clicks.FiveMinute > 0 {
		total += cfg.ActiveViewWeight
	}

	if e.IsBestDeal() {
		total += cfg.BestDealWeight
	}

	if listing.IsPrimary {
		total += cfg.PrimaryWeight
	}

	if maxWeekClicks > 0 && e.Clicks.SevenDay > 0 {
		total += cfg.ClickTrendMaxWeight * float64(e.Clicks.SevenDay) / float64(maxWeekClicks)
	}

	if e.Clicks.SevenDay >= cfg.PopularClickThreshold {
		total += cfg.PopularWeight
	}

	staleness, checked := listing.MinutesSinceLastCheck(now)
	if !checked {
		staleness = cfg.NeverCheckedMinutes
	}
	pressure := staleness * cfg.StalenessWeight
	if e.Volatile {
		pressure *= cfg.VolatileMultiplier
	}
	total += pressure

	switch {
	case listing.ErrorCount > cfg.NoisyErrorThreshold:
		total -= cfg.NoisyPenalty
	case listing.ErrorCount > 0 && listing.ErrorCount <= cfg.RetryMaxErrors:
		total += cfg.RetryBonus
	}

	if listing.Price != nil && *listing.Price >= cfg.HighValueThreshold {
		total += cfg.HighValueWeight
	}

	return total
}
