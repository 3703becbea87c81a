// internal/jobs/runner.go
package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/ingest"
	"github.com/dealhawk/dealhawk-backend/internal/marketplace"
	"github.com/dealhawk/dealhawk-backend/internal/models"
	"github.com/dealhawk/dealhawk-backend/internal/refresh"
)

// Refresher runs the deal-refresh batch and the expiry sweep.
type Refresher interface {
	RefreshDeals(ctx context.Context, batchSize int) (refresh.Summary, error)
	SweepExpired(ctx context.Context) (int, error)
}

// Ingester searches one marketplace for a product and materializes new deals.
type Ingester interface {
	IngestListings(ctx context.Context, productID uuid.UUID, query, marketplaceName string) (ingest.Summary, error)
}

// ProductSource lists the products eligible for background ingestion.
type ProductSource interface {
	ServiceEnabledProducts(ctx context.Context) ([]models.Product, error)
}

// Runner drives the background loops: refresh batches, the expiry sweep,
// and periodic ingestion for service-enabled products.
type Runner struct {
	refresher Refresher
	ingester  Ingester
	products  ProductSource
	registry  *marketplace.Registry
	cfg       *config.Config
	log       *logrus.Entry
}

func NewRunner(refresher Refresher, ingester Ingester, products ProductSource, registry *marketplace.Registry, cfg *config.Config) *Runner {
	return &Runner{
		refresher: refresher,
		ingester:  ingester,
		products:  products,
		registry:  registry,
		cfg:       cfg,
		log:       logrus.WithField("component", "jobs"),
	}
}

// Start blocks until ctx is cancelled. Each loop runs independently; a
// failing cycle logs and waits for the next tick.
func (r *Runner) Start(ctx context.Context) {
	go r.loop(ctx, "refresh", r.cfg.Refresh.Interval, func(ctx context.Context) error {
		_, err := r.refresher.RefreshDeals(ctx, r.cfg.Refresh.BatchSize)
		return err
	})

	go r.loop(ctx, "sweep", r.cfg.Refresh.SweepInterval, func(ctx context.Context) error {
		_, err := r.refresher.SweepExpired(ctx)
		return err
	})

	go r.loop(ctx, "ingest", r.cfg.Refresh.IngestInterval, r.ingestCycle)

	<-ctx.Done()
	r.log.Info("Background jobs stopping")
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		r.log.WithField("job", name).Warn("Job disabled, non-positive interval")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).WithField("job", name).Error("Job cycle failed")
			}
		}
	}
}

// ingestCycle searches every registered marketplace for each enabled
// product's listings. Per-product and per-marketplace failures do not stop
// the cycle.
func (r *Runner) ingestCycle(ctx context.Context) error {
	marketplaces := r.registry.Names()
	if len(marketplaces) == 0 {
		return nil
	}

	products, err := r.products.ServiceEnabledProducts(ctx)
	if err != nil {
		return err
	}

	for i := range products {
		for _, name := range marketplaces {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			summary, err := r.ingester.IngestListings(ctx, products[i].ID, products[i].CanonicalQuery, name)
			if err != nil {
				r.log.WithError(err).WithFields(logrus.Fields{
					"product":     products[i].ID,
					"marketplace": name,
				}).Warn("Product ingestion failed")
				continue
			}
			if summary.Created > 0 {
				r.log.WithFields(logrus.Fields{
					"product":     products[i].ID,
					"marketplace": name,
					"created":     summary.Created,
				}).Info("New listings ingested")
			}
		}
	}
	return nil
}
