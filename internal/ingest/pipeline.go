// internal/ingest/pipeline.go
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/marketplace"
	"github.com/dealhawk/dealhawk-backend/internal/models"
	"github.com/dealhawk/dealhawk-backend/internal/repository"
)

// Pipeline turns marketplace search results into new tracked deals:
// recall, verify, variant resolution, top-K selection, materialization.
type Pipeline struct {
	repo     repository.Repository
	registry *marketplace.Registry
	matcher  *Matcher
	cfg      *config.Config
	log      *logrus.Entry
}

func NewPipeline(repo repository.Repository, registry *marketplace.Registry, matcher *Matcher, cfg *config.Config) *Pipeline {
	return &Pipeline{
		repo:     repo,
		registry: registry,
		matcher:  matcher,
		cfg:      cfg,
		log:      logrus.WithField("component", "ingest"),
	}
}

// Summary is the aggregate result of one ingestion run.
type Summary struct {
	Searched   int `json:"searched"`
	Candidates int `json:"candidates"`
	Matched    int `json:"matched"`
	Created    int `json:"created"`
}

type scoredCandidate struct {
	candidate marketplace.CandidateListing
	verdict   Verdict
	variantID *uuid.UUID
}

// IngestListings searches a marketplace for the product and materializes
// the surviving candidates as new deals. Per-candidate failures are
// isolated; the summary reports partial progress.
func (p *Pipeline) IngestListings(ctx context.Context, productID uuid.UUID, query, marketplaceName string) (Summary, error) {
	var summary Summary

	products, err := p.repo.ProductsByIDs(ctx, []uuid.UUID{productID})
	if err != nil {
		return summary, fmt.Errorf("loading product: %w", err)
	}
	product, ok := products[productID]
	if !ok {
		return summary, fmt.Errorf("product %s not found", productID)
	}
	if !product.EnableService {
		p.log.WithField("product", productID).Info("Ingestion skipped, service disabled")
		return summary, nil
	}

	client, ok := p.registry.Client(marketplaceName)
	if !ok {
		return summary, fmt.Errorf("no store client for marketplace %s", marketplaceName)
	}

	if query == "" {
		query = product.CanonicalQuery
	}
	if query == "" {
		query = product.Title
	}

	candidates, searched, err := p.recall(ctx, client, product, query)
	summary.Searched = searched
	summary.Candidates = len(candidates)
	if err != nil && len(candidates) == 0 {
		return summary, err
	}

	matched := make([]scoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		verdict := p.matcher.Evaluate(product, query, candidate)
		if !verdict.Accepted {
			p.log.WithFields(logrus.Fields{
				"item":   candidate.Key(),
				"reason": verdict.Reason,
			}).Debug("Candidate rejected")
			continue
		}
		matched = append(matched, scoredCandidate{candidate: candidate, verdict: verdict})
	}
	summary.Matched = len(matched)

	grouped, err := p.resolveAndGroup(ctx, product, marketplaceName, matched)
	if err != nil {
		return summary, err
	}

	created, err := p.materialize(ctx, product, marketplaceName, grouped)
	summary.Created = created

	if created > 0 {
		if recomputeErr := p.repo.RecomputeBestListing(ctx, product.ID); recomputeErr != nil {
			p.log.WithError(recomputeErr).WithField("product", product.ID).Warn("Best-deal recomputation failed")
		}
	}

	p.log.WithFields(logrus.Fields{
		"product":    product.ID,
		"searched":   summary.Searched,
		"candidates": summary.Candidates,
		"matched":    summary.Matched,
		"created":    summary.Created,
	}).Info("Ingestion run complete")

	return summary, err
}

// recall executes a search per query variant and merges the results,
// deduplicated by item id (or URL), keeping the first occurrence.
func (p *Pipeline) recall(ctx context.Context, client marketplace.StoreClient, product *models.Product, query string) ([]marketplace.CandidateListing, int, error) {
	variants := p.matcher.QueryVariants(product, query)

	var merged []marketplace.CandidateListing
	seen := make(map[string]bool)
	var errs []error
	searched := 0

	for _, variant := range variants {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		results, err := client.SearchListings(ctx, variant, product.PreferredCondition)
		if err != nil {
			errs = append(errs, fmt.Errorf("searching %q: %w", variant, err))
			continue
		}
		searched++
		for _, candidate := range results {
			key := candidate.Key()
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, candidate)
		}
	}

	return merged, searched, errors.Join(errs...)
}

// resolveAndGroup applies variant resolution when the client supports it,
// then buckets candidates by (variant, condition) and keeps the
// lowest-priced top-K per bucket.
func (p *Pipeline) resolveAndGroup(ctx context.Context, product *models.Product, marketplaceName string, matched []scoredCandidate) ([]scoredCandidate, error) {
	resolver, hasResolver := p.registry.Resolver(marketplaceName)

	resolveVariants := false
	if hasResolver {
		has, err := resolver.HasActiveVariants(ctx, product.ID)
		if err != nil {
			return nil, fmt.Errorf("checking product variants: %w", err)
		}
		resolveVariants = has
	}

	kept := make([]scoredCandidate, 0, len(matched))
	for _, sc := range matched {
		if resolveVariants {
			variantID, err := resolver.ResolveVariant(ctx, product.ID, sc.candidate)
			if err != nil {
				p.log.WithError(err).WithField("item", sc.candidate.Key()).Warn("Variant resolution failed")
				continue
			}
			if variantID == nil {
				// Products with active variants only track listings pinned
				// to exactly one of them.
				continue
			}
			sc.variantID = variantID
		}
		kept = append(kept, sc)
	}

	groups := make(map[string][]scoredCandidate)
	for _, sc := range kept {
		key := string(sc.candidate.Condition)
		if sc.variantID != nil {
			key = sc.variantID.String() + "|" + key
		}
		groups[key] = append(groups[key], sc)
	}

	topK := p.cfg.Matcher.TopKPerGroup
	var survivors []scoredCandidate
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			pi, pj := group[i].candidate.Price, group[j].candidate.Price
			switch {
			case pi == nil:
				return false
			case pj == nil:
				return true
			default:
				return *pi < *pj
			}
		})
		if topK > 0 && len(group) > topK {
			group = group[:topK]
		}
		survivors = append(survivors, group...)
	}

	return survivors, nil
}

func (p *Pipeline) materialize(ctx context.Context, product *models.Product, marketplaceName string, survivors []scoredCandidate) (int, error) {
	created := 0
	var errs []error
	now := time.Now()

	for _, sc := range survivors {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		exists, err := p.repo.ListingExists(ctx, marketplaceName, sc.candidate.ItemID)
		if err != nil {
			errs = append(errs, fmt.Errorf("checking existing listing %s: %w", sc.candidate.Key(), err))
			continue
		}
		if exists {
			continue
		}

		deal := &models.Deal{
			ProductID:   product.ID,
			AdminPosted: true,
			Status:      models.DealStatusActive,
			SourceURL:   sc.candidate.URL,
		}
		currency := sc.candidate.Currency
		if currency == "" {
			currency = "USD"
		}
		listing := &models.TrackedListing{
			ProductID:      product.ID,
			VariantID:      sc.variantID,
			Marketplace:    marketplaceName,
			ExternalItemID: sc.candidate.ItemID,
			URL:            sc.candidate.URL,
			Price:          sc.candidate.Price,
			Currency:       currency,
			Condition:      sc.candidate.Condition,
			DiscountPct:    DiscountPercent(sc.candidate.Price, product.MSRP),
			Status:         models.ListingStatusActive,
			// First check lands in the next refresh cycle; next_check_at
			// is always strictly in the future.
			NextCheckAt: now.Add(time.Minute),
		}

		if err := p.repo.CreateDealWithListing(ctx, deal, listing); err != nil {
			errs = append(errs, fmt.Errorf("materializing %s: %w", sc.candidate.Key(), err))
			continue
		}
		created++
	}

	return created, errors.Join(errs...)
}

// DiscountPercent computes round((1 - price/MSRP) × 100), or nil when MSRP
// is missing or non-positive, or the price is unknown.
func DiscountPercent(price, msrp *float64) *int {
	if price == nil || msrp == nil || *msrp <= 0 {
		return nil
	}
	pct := int(math.Round((1 - *price / *msrp) * 100))
	return &pct
}
