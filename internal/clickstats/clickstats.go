// internal/clickstats/clickstats.go
package clickstats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/dealhawk/dealhawk-backend/internal/models"
	"github.com/dealhawk/dealhawk-backend/internal/repository"
)

const (
	shortWindow   = 5 * time.Minute
	longWindow    = 7 * 24 * time.Hour
	bucketSize    = time.Minute
	bucketRetain  = shortWindow + 2*bucketSize
	shortKeySpace = "clicks:5m"
)

// Counts carries the two click windows the scorer and scheduler consume.
type Counts struct {
	FiveMinute int64
	SevenDay   int64
}

// Stats records listing clicks and serves windowed counts.
type Stats interface {
	Record(ctx context.Context, listingID, productID uuid.UUID) error
	CountsFor(ctx context.Context, listingIDs []uuid.UUID) (map[uuid.UUID]Counts, error)
}

// redisStats keeps the hot 5-minute window in per-minute Redis buckets and
// reads the 7-day window from the click_events table. A Redis outage
// degrades the 5-minute signal to zero rather than failing the batch.
type redisStats struct {
	rdb  *redis.Client
	repo repository.Repository
	log  *logrus.Entry
}

func New(rdb *redis.Client, repo repository.Repository) Stats {
	return &redisStats{
		rdb:  rdb,
		repo: repo,
		log:  logrus.WithField("component", "clickstats"),
	}
}

func (s *redisStats) Record(ctx context.Context, listingID, productID uuid.UUID) error {
	event := &models.ClickEvent{ListingID: listingID, ProductID: productID}
	if err := s.repo.RecordClick(ctx, event); err != nil {
		return err
	}

	key := bucketKey(listingID, time.Now())
	pipe := s.rdb.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, bucketRetain)
	if _, err := pipe.Exec(ctx); err != nil {
		// The durable row exists; losing the hot counter only costs
		// scheduling priority.
		s.log.WithError(err).Warn("Failed to bump 5-minute click counter")
	}
	return nil
}

func (s *redisStats) CountsFor(ctx context.Context, listingIDs []uuid.UUID) (map[uuid.UUID]Counts, error) {
	result := make(map[uuid.UUID]Counts, len(listingIDs))
	if len(listingIDs) == 0 {
		return result, nil
	}

	weekCounts, err := s.repo.ClickCountsSince(ctx, listingIDs, time.Now().Add(-longWindow))
	if err != nil {
		return nil, fmt.Errorf("loading 7-day click counts: %w", err)
	}

	shortCounts := s.shortWindowCounts(ctx, listingIDs)

	for _, id := range listingIDs {
		result[id] = Counts{
			FiveMinute: shortCounts[id],
			SevenDay:   weekCounts[id],
		}
	}
	return result, nil
}

func (s *redisStats) shortWindowCounts(ctx context.Context, listingIDs []uuid.UUID) map[uuid.UUID]int64 {
	counts := make(map[uuid.UUID]int64, len(listingIDs))
	now := time.Now()

	pipe := s.rdb.Pipeline()
	cmds := make(map[uuid.UUID][]*redis.StringCmd, len(listingIDs))
	for _, id := range listingIDs {
		buckets := make([]*redis.StringCmd, 0, int(shortWindow/bucketSize)+1)
		for offset := time.Duration(0); offset <= shortWindow; offset += bucketSize {
			buckets = append(buckets, pipe.Get(ctx, bucketKey(id, now.Add(-offset))))
		}
		cmds[id] = buckets
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		s.log.WithError(err).Warn("Failed to read 5-minute click counters")
		return counts
	}

	for id, buckets := range cmds {
		var total int64
		for _, cmd := range buckets {
			if n, err := cmd.Int64(); err == nil {
				total += n
			}
		}
		counts[id] = total
	}
	return counts
}

func bucketKey(listingID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s:%s:%d", shortKeySpace, listingID, at.Unix()/int64(bucketSize.Seconds()))
}
