// internal/refresh/sweep.go
package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SweepExpired expires every active deal whose expiration has passed,
// together with all its listings, and recomputes best-deal once per
// affected product. It runs independently of refresh scheduling:
// expiration is not gated by verification status or due-pool membership.
func (o *Orchestrator) SweepExpired(ctx context.Context) (int, error) {
	deals, err := o.repo.DealsPastExpiration(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching deals past expiration: %w", err)
	}
	if len(deals) == 0 {
		return 0, nil
	}

	var errs []error
	expired := 0
	affected := make(map[uuid.UUID]bool)

	for i := range deals {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := o.repo.ExpireDealCascade(ctx, deals[i].ID); err != nil {
			errs = append(errs, fmt.Errorf("expiring deal %s: %w", deals[i].ID, err))
			continue
		}
		expired++
		affected[deals[i].ProductID] = true
	}

	for productID := range affected {
		o.recomputeBestDeal(ctx, productID)
	}

	if expired > 0 {
		o.log.WithField("expired", expired).Info("Expiry sweep complete")
	}

	return expired, errors.Join(errs...)
}
