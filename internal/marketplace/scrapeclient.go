// internal/marketplace/scrapeclient.go
package marketplace

import (
	"context"
	"errors"

	"github.com/dealhawk/dealhawk-backend/internal/models"
	"github.com/dealhawk/dealhawk-backend/internal/scraper"
)

// ErrBlocked signals bot protection at the client boundary so the
// orchestrator can escalate instead of counting an ordinary error.
var ErrBlocked = errors.New("blocked by bot protection")

// ErrSearchUnsupported is returned by scrape-only clients, which can fetch
// known URLs but have no search surface.
var ErrSearchUnsupported = errors.New("marketplace does not support search")

// ScrapeClient adapts the HTML scrape fallback to the StoreClient contract
// for marketplaces without an API integration.
type ScrapeClient struct {
	name      string
	scraper   *scraper.Scraper
	selectors scraper.SelectorSet
}

func NewScrapeClient(name string, s *scraper.Scraper, selectors scraper.SelectorSet) *ScrapeClient {
	return &ScrapeClient{name: name, scraper: s, selectors: selectors}
}

func (c *ScrapeClient) Name() string { return c.name }

func (c *ScrapeClient) FetchByURL(ctx context.Context, url string) (*ListingSnapshot, error) {
	result, err := c.scraper.Scrape(ctx, url, c.selectors)
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if result.Blocked {
		return nil, ErrBlocked
	}

	return &ListingSnapshot{
		Price:    result.Price,
		Currency: result.Currency,
		InStock:  result.InStock,
		Sold:     result.Sold,
	}, nil
}

func (c *ScrapeClient) SearchListings(ctx context.Context, query string, preferred models.ConditionCategory) ([]CandidateListing, error) {
	return nil, ErrSearchUnsupported
}
