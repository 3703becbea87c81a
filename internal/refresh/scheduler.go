// internal/refresh/scheduler.go
package refresh

import (
	"time"

	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

// Tier is the coarse refresh-priority bucket driving next-check intervals.
type Tier int

const (
	TierA Tier = iota // hot: actively viewed or current best deal
	TierB             // primary listing, not hot
	TierC             // long tail
	TierD             // dead/noisy: error-ridden or stale
)

func (t Tier) String() string {
	switch t {
	case TierA:
		return "A"
	case TierB:
		return "B"
	case TierC:
		return "C"
	case TierD:
		return "D"
	default:
		return "?"
	}
}

// AssignTier buckets a listing. Evaluation order matters: first match wins,
// so an actively-viewed listing is hot even when its error count is high.
func AssignTier(listing *models.TrackedListing, clicks5m int64, isBestDeal bool, staleErrorLimit int) Tier {
	switch {
	case clicks5m > 0 || isBestDeal:
		return TierA
	case listing.IsPrimary:
		return TierB
	case listing.ErrorCount >= staleErrorLimit || listing.Stale:
		return TierD
	default:
		return TierC
	}
}

// NextCheckAt computes when a listing should be re-checked. jitter must be
// in [0,1); the caller supplies it so the function stays pure. A risk bump
// (just-observed price or status change) on a hot or primary listing uses
// the short fixed risk interval to re-verify quickly. Tier D gets a large
// fixed interval with no jitter. Everything else picks a uniformly random
// instant inside the tier's range, which spreads re-checks for listings
// ingested in one burst.
func NextCheckAt(now time.Time, tier Tier, volatile, statusChanged, priceChanged bool, cfg config.TierConfig, jitter float64) time.Time {
	riskBump := statusChanged || priceChanged

	if riskBump && (tier == TierA || tier == TierB) {
		return ensureFuture(now, now.Add(cfg.RiskInterval))
	}

	if tier == TierD {
		return ensureFuture(now, now.Add(cfg.TierDInterval))
	}

	var tierRange config.TierRange
	switch tier {
	case TierA:
		tierRange = cfg.TierA
	case TierB:
		tierRange = cfg.TierB
	default:
		tierRange = cfg.TierC
	}

	min, max := tierRange.Min, tierRange.Max
	if volatile {
		min, max = tierRange.VolatileMin, tierRange.VolatileMax
	}
	if max < min {
		max = min
	}

	interval := min + time.Duration(jitter*float64(max-min))
	return ensureFuture(now, now.Add(interval))
}

// ensureFuture guards the invariant that next_check_at is strictly after
// the time it was computed, even under degenerate configuration.
func ensureFuture(now, candidate time.Time) time.Time {
	if candidate.After(now) {
		return candidate
	}
	return now.Add(time.Minute)
}
