// internal/refresh/scorer_test.go
package refresh

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dealhawk/dealhawk-backend/internal/clickstats"
	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		ActiveViewWeight:      100,
		BestDealWeight:        50,
		PrimaryWeight:         25,
		ClickTrendMaxWeight:   40,
		PopularWeight:         20,
		PopularClickThreshold: 25,
		StalenessWeight:       0.01,
		NeverCheckedMinutes:   100000,
		VolatileMultiplier:    2.0,
		RetryBonus:            10,
		RetryMaxErrors:        3,
		NoisyPenalty:          500,
		NoisyErrorThreshold:   10,
		HighValueWeight:       15,
		HighValueThreshold:    200,
	}
}

func enabledProduct() *models.Product {
	return &models.Product{
		BaseModel:     models.BaseModel{ID: uuid.New()},
		EnableService: true,
	}
}

func checkedListing(id uuid.UUID, checkedAgo time.Duration, now time.Time) models.TrackedListing {
	last := now.Add(-checkedAgo)
	return models.TrackedListing{
		BaseModel:     models.BaseModel{ID: id},
		LastCheckedAt: &last,
		NextCheckAt:   now,
	}
}

func TestRankOrdersByScoreDescending(t *testing.T) {
	now := time.Now()
	cfg := testScoringConfig()

	hotID, coldID := uuid.New(), uuid.New()
	pool := []PoolEntry{
		{
			Listing: checkedListing(coldID, time.Hour, now),
			Product: enabledProduct(),
		},
		{
			Listing: checkedListing(hotID, time.Hour, now),
			Product: enabledProduct(),
			Clicks:  clickstats.Counts{FiveMinute: 3},
		},
	}

	ranked := Rank(pool, 10, cfg, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, hotID, ranked[0].Listing.ID)
	assert.Equal(t, coldID, ranked[1].Listing.ID)
}

func TestRankMonotonicInWeeklyClicks(t *testing.T) {
	now := time.Now()
	cfg := testScoringConfig()

	lowID, highID := uuid.New(), uuid.New()
	pool := []PoolEntry{
		{
			Listing: checkedListing(lowID, time.Hour, now),
			Product: enabledProduct(),
			Clicks:  clickstats.Counts{SevenDay: 2},
		},
		{
			Listing: checkedListing(highID, time.Hour, now),
			Product: enabledProduct(),
			Clicks:  clickstats.Counts{SevenDay: 20},
		},
	}

	ranked := Rank(pool, 10, cfg, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, highID, ranked[0].Listing.ID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankDropsIneligibleProducts(t *testing.T) {
	now := time.Now()
	cfg := testScoringConfig()

	disabled := enabledProduct()
	disabled.EnableService = false

	deleted := enabledProduct()
	deleted.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}

	keptID := uuid.New()
	pool := []PoolEntry{
		{Listing: checkedListing(uuid.New(), time.Hour, now), Product: nil},
		{Listing: checkedListing(uuid.New(), time.Hour, now), Product: disabled},
		{Listing: checkedListing(uuid.New(), time.Hour, now), Product: deleted},
		{Listing: checkedListing(keptID, time.Hour, now), Product: enabledProduct()},
	}

	ranked := Rank(pool, 10, cfg, now)
	require.Len(t, ranked, 1)
	assert.Equal(t, keptID, ranked[0].Listing.ID)
}

func TestRankTieBreakByOldestScheduledCheck(t *testing.T) {
	now := time.Now()
	cfg := testScoringConfig()

	earlier := checkedListing(uuid.New(), time.Hour, now)
	earlier.NextCheckAt = now.Add(-2 * time.Hour)
	later := checkedListing(uuid.New(), time.Hour, now)
	later.NextCheckAt = now.Add(-1 * time.Hour)

	pool := []PoolEntry{
		{Listing: later, Product: enabledProduct()},
		{Listing: earlier, Product: enabledProduct()},
	}

	ranked := Rank(pool, 10, cfg, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.Equal(t, earlier.ID, ranked[0].Listing.ID)
}

func TestRankTruncatesToBatchSize(t *testing.T) {
	now := time.Now()
	cfg := testScoringConfig()

	pool := make([]PoolEntry, 8)
	for i := range pool {
		pool[i] = PoolEntry{
			Listing: checkedListing(uuid.New(), time.Hour, now),
			Product: enabledProduct(),
		}
	}

	assert.Len(t, Rank(pool, 3, cfg, now), 3)
	assert.Len(t, Rank(pool, 0, cfg, now), 8)
}

func TestScoreSignals(t *testing.T) {
	now := time.Now()
	cfg := testScoringConfig()

	t.Run("never checked outranks recently checked", func(t *testing.T) {
		neverID := uuid.New()
		never := models.TrackedListing{BaseModel: models.BaseModel{ID: neverID}, NextCheckAt: now}
		pool := []PoolEntry{
			{Listing: checkedListing(uuid.New(), time.Minute, now), Product: enabledProduct()},
			{Listing: never, Product: enabledProduct()},
		}
		ranked := Rank(pool, 10, cfg, now)
		require.Len(t, ranked, 2)
		assert.Equal(t, neverID, ranked[0].Listing.ID)
	})

	t.Run("volatile marketplace doubles staleness pressure", func(t *testing.T) {
		volatileID := uuid.New()
		pool := []PoolEntry{
			{Listing: checkedListing(uuid.New(), 10*time.Hour, now), Product: enabledProduct()},
			{Listing: checkedListing(volatileID, 10*time.Hour, now), Product: enabledProduct(), Volatile: true},
		}
		ranked := Rank(pool, 10, cfg, now)
		require.Len(t, ranked, 2)
		assert.Equal(t, volatileID, ranked[0].Listing.ID)
	})

	t.Run("noisy listing penalized, recoverable one boosted", func(t *testing.T) {
		retryID := uuid.New()
		retry := checkedListing(retryID, time.Hour, now)
		retry.ErrorCount = 2
		noisy := checkedListing(uuid.New(), time.Hour, now)
		noisy.ErrorCount = 11
		clean := checkedListing(uuid.New(), time.Hour, now)

		ranked := Rank([]PoolEntry{
			{Listing: noisy, Product: enabledProduct()},
			{Listing: clean, Product: enabledProduct()},
			{Listing: retry, Product: enabledProduct()},
		}, 10, cfg, now)
		require.Len(t, ranked, 3)
		assert.Equal(t, retryID, ranked[0].Listing.ID)
		assert.Equal(t, noisy.ID, ranked[2].Listing.ID)
	})

	t.Run("best deal pointer adds weight", func(t *testing.T) {
		product := enabledProduct()
		best := checkedListing(uuid.New(), time.Hour, now)
		product.BestListingID = &best.ID

		other := checkedListing(uuid.New(), time.Hour, now)
		ranked := Rank([]PoolEntry{
			{Listing: other, Product: product},
			{Listing: best, Product: product},
		}, 10, cfg, now)
		require.Len(t, ranked, 2)
		assert.Equal(t, best.ID, ranked[0].Listing.ID)
	})
}
