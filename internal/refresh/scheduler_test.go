// internal/refresh/scheduler_test.go
package refresh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

func testTierConfig() config.TierConfig {
	return config.TierConfig{
		TierA: config.TierRange{
			Min: 15 * time.Minute, Max: 60 * time.Minute,
			VolatileMin: 10 * time.Minute, VolatileMax: 30 * time.Minute,
		},
		TierB: config.TierRange{
			Min: 2 * time.Hour, Max: 6 * time.Hour,
			VolatileMin: 1 * time.Hour, VolatileMax: 3 * time.Hour,
		},
		TierC: config.TierRange{
			Min: 12 * time.Hour, Max: 36 * time.Hour,
			VolatileMin: 6 * time.Hour, VolatileMax: 18 * time.Hour,
		},
		TierDInterval: 7 * 24 * time.Hour,
		RiskInterval:  10 * time.Minute,
	}
}

func TestAssignTier(t *testing.T) {
	// Recent clicks win over everything, including a high error count.
	noisy := &models.TrackedListing{ErrorCount: 50}
	assert.Equal(t, TierA, AssignTier(noisy, 3, false, 10))

	// Best-deal pointer is hot even without clicks.
	assert.Equal(t, TierA, AssignTier(&models.TrackedListing{}, 0, true, 10))

	primary := &models.TrackedListing{IsPrimary: true}
	assert.Equal(t, TierB, AssignTier(primary, 0, false, 10))

	assert.Equal(t, TierD, AssignTier(&models.TrackedListing{ErrorCount: 10}, 0, false, 10))
	assert.Equal(t, TierD, AssignTier(&models.TrackedListing{Stale: true}, 0, false, 10))

	assert.Equal(t, TierC, AssignTier(&models.TrackedListing{}, 0, false, 10))
}

func TestNextCheckAtRiskBump(t *testing.T) {
	cfg := testTierConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Price change on a hot listing pins the exact risk interval, jitter
	// and volatility notwithstanding.
	next := NextCheckAt(now, TierA, true, false, true, cfg, 0.9)
	assert.Equal(t, now.Add(cfg.RiskInterval), next)

	next = NextCheckAt(now, TierB, false, true, false, cfg, 0.1)
	assert.Equal(t, now.Add(cfg.RiskInterval), next)

	// Tier C ignores the risk bump and stays in its normal range.
	next = NextCheckAt(now, TierC, false, true, true, cfg, 0)
	assert.Equal(t, now.Add(cfg.TierC.Min), next)
}

func TestNextCheckAtTierD(t *testing.T) {
	cfg := testTierConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Fixed interval, no jitter: identical for any jitter input.
	first := NextCheckAt(now, TierD, false, false, false, cfg, 0.1)
	second := NextCheckAt(now, TierD, false, false, false, cfg, 0.9)
	assert.Equal(t, first, second)
	assert.Equal(t, now.Add(cfg.TierDInterval), first)

	// A status change on a dead listing does not trigger the risk bump.
	bumped := NextCheckAt(now, TierD, false, true, true, cfg, 0.5)
	assert.Equal(t, now.Add(cfg.TierDInterval), bumped)
}

func TestNextCheckAtJitterSpansTierRange(t *testing.T) {
	cfg := testTierConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	atMin := NextCheckAt(now, TierA, false, false, false, cfg, 0)
	assert.Equal(t, now.Add(cfg.TierA.Min), atMin)

	nearMax := NextCheckAt(now, TierA, false, false, false, cfg, 0.999)
	assert.True(t, nearMax.After(atMin))
	assert.False(t, nearMax.After(now.Add(cfg.TierA.Max)))
}

func TestNextCheckAtVolatileUsesTighterWindow(t *testing.T) {
	cfg := testTierConfig()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	volatile := NextCheckAt(now, TierB, true, false, false, cfg, 0.999)
	assert.False(t, volatile.After(now.Add(cfg.TierB.VolatileMax)))
	assert.False(t, volatile.Before(now.Add(cfg.TierB.VolatileMin)))
}

func TestNextCheckAtAlwaysFuture(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Degenerate configuration with zero intervals still schedules ahead.
	var cfg config.TierConfig
	for _, tier := range []Tier{TierA, TierB, TierC, TierD} {
		next := NextCheckAt(now, tier, false, false, false, cfg, 0)
		assert.True(t, next.After(now), "tier %s scheduled in the past", tier)
	}
}
