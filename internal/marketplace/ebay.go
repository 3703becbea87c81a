// internal/marketplace/ebay.go
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dealhawk/dealhawk-backend/internal/models"
)

// VariantCatalog supplies the active variants an API client matches search
// results against. Backed by the repository in production.
type VariantCatalog interface {
	ActiveVariants(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
}

// EbayClient is the API-backed Store Client for eBay. Outbound calls are
// rate-limited client side; the marketplace throttles aggressive callers.
type EbayClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	variants   VariantCatalog
	log        *logrus.Entry
}

func NewEbayClient(baseURL, token string, variants VariantCatalog) *EbayClient {
	return &EbayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(250*time.Millisecond), 3),
		variants:   variants,
		log:        logrus.WithField("marketplace", "ebay"),
	}
}

func (c *EbayClient) Name() string { return "ebay" }

type ebayItem struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	ItemWebURL string `json:"itemWebUrl"`
	Price      *struct {
		Value    string `json:"value"`
		Currency string `json:"currency"`
	} `json:"price"`
	GTIN                  string `json:"gtin"`
	Brand                 string `json:"brand"`
	MPN                   string `json:"mpn"`
	Condition             string `json:"condition"`
	EstimatedAvailability []struct {
		AvailabilityStatus string `json:"estimatedAvailabilityStatus"`
	} `json:"estimatedAvailabilities"`
	ItemEndDate string `json:"itemEndDate"`
	Seller      struct {
		FeedbackPercentage string `json:"feedbackPercentage"`
		FeedbackScore      int64  `json:"feedbackScore"`
		TopRated           bool   `json:"topRatedSeller"`
	} `json:"seller"`
	ShippingOptions []struct {
		ShippingCost struct {
			Value string `json:"value"`
		} `json:"shippingCost"`
	} `json:"shippingOptions"`
}

func (c *EbayClient) FetchByURL(ctx context.Context, listingURL string) (*ListingSnapshot, error) {
	itemID := itemIDFromURL(listingURL)
	if itemID == "" {
		return nil, fmt.Errorf("no item id in url %s", listingURL)
	}

	var item ebayItem
	path := "/buy/browse/v1/item/v1|" + itemID + "|0"
	if err := c.get(ctx, path, nil, &item); err != nil {
		return nil, err
	}

	snapshot := &ListingSnapshot{Currency: "USD", InStock: true}
	if item.Price != nil {
		if v, err := strconv.ParseFloat(item.Price.Value, 64); err == nil {
			snapshot.Price = &v
		}
		if item.Price.Currency != "" {
			snapshot.Currency = item.Price.Currency
		}
	}

	for _, avail := range item.EstimatedAvailability {
		if strings.EqualFold(avail.AvailabilityStatus, "OUT_OF_STOCK") {
			snapshot.InStock = false
		}
	}

	if item.ItemEndDate != "" {
		if end, err := time.Parse(time.RFC3339, item.ItemEndDate); err == nil && end.Before(time.Now()) {
			snapshot.Sold = true
			snapshot.InStock = false
		}
	}

	return snapshot, nil
}

func (c *EbayClient) SearchListings(ctx context.Context, query string, preferred models.ConditionCategory) ([]CandidateListing, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", "50")
	if filter := conditionFilter(preferred); filter != "" {
		params.Set("filter", filter)
	}

	var payload struct {
		ItemSummaries []ebayItem `json:"itemSummaries"`
	}
	if err := c.get(ctx, "/buy/browse/v1/item_summary/search", params, &payload); err != nil {
		return nil, err
	}

	candidates := make([]CandidateListing, 0, len(payload.ItemSummaries))
	for _, item := range payload.ItemSummaries {
		candidate := CandidateListing{
			ItemID:              item.ItemID,
			URL:                 item.ItemWebURL,
			Title:               item.Title,
			GTIN:                item.GTIN,
			Brand:               item.Brand,
			MPN:                 item.MPN,
			Condition:           normalizeCondition(item.Condition),
			SellerFeedbackScore: item.Seller.FeedbackScore,
			SellerTopRated:      item.Seller.TopRated,
		}
		if item.Price != nil {
			if v, err := strconv.ParseFloat(item.Price.Value, 64); err == nil {
				candidate.Price = &v
				candidate.Currency = item.Price.Currency
			}
		}
		if pct, err := strconv.ParseFloat(item.Seller.FeedbackPercentage, 64); err == nil {
			candidate.SellerFeedbackPct = pct
		}
		for _, opt := range item.ShippingOptions {
			if opt.ShippingCost.Value == "0.00" || opt.ShippingCost.Value == "0.0" || opt.ShippingCost.Value == "0" {
				candidate.FreeShipping = true
				break
			}
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// HasActiveVariants implements the VariantResolver capability.
func (c *EbayClient) HasActiveVariants(ctx context.Context, productID uuid.UUID) (bool, error) {
	variants, err := c.variants.ActiveVariants(ctx, productID)
	if err != nil {
		return false, err
	}
	return len(variants) > 0, nil
}

// ResolveVariant maps a candidate onto exactly one active variant by SKU
// (via MPN) or by variant-name token presence in the title. Ambiguous or
// unmatched candidates resolve to nil.
func (c *EbayClient) ResolveVariant(ctx context.Context, productID uuid.UUID, candidate CandidateListing) (*uuid.UUID, error) {
	variants, err := c.variants.ActiveVariants(ctx, productID)
	if err != nil {
		return nil, err
	}

	if candidate.MPN != "" {
		for i := range variants {
			if strings.EqualFold(variants[i].SKU, candidate.MPN) {
				return &variants[i].ID, nil
			}
		}
	}

	title := strings.ToLower(candidate.Title)
	var matched *uuid.UUID
	for i := range variants {
		name := strings.ToLower(variants[i].Name)
		if name == "" || !strings.Contains(title, name) {
			continue
		}
		if matched != nil {
			// More than one variant name appears in the title.
			return nil, nil
		}
		matched = &variants[i].ID
	}
	return matched, nil
}

func (c *EbayClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", "EBAY_US")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling ebay: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrListingNotFound
	default:
		return fmt.Errorf("ebay returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding ebay response: %w", err)
	}
	return nil
}

func itemIDFromURL(listingURL string) string {
	parsed, err := url.Parse(listingURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, part := range parts {
		if part == "itm" && i+1 < len(parts) {
			segment := parts[len(parts)-1]
			if _, err := strconv.ParseInt(segment, 10, 64); err == nil {
				return segment
			}
		}
	}
	return ""
}

func conditionFilter(preferred models.ConditionCategory) string {
	switch preferred {
	case models.ConditionNew:
		return "conditions:{NEW}"
	case models.ConditionRefurbished:
		return "conditions:{CERTIFIED_REFURBISHED|SELLER_REFURBISHED}"
	case models.ConditionUsed:
		return "conditions:{USED}"
	default:
		return ""
	}
}

func normalizeCondition(raw string) models.ConditionCategory {
	lowered := strings.ToLower(raw)
	switch {
	case strings.Contains(lowered, "new"):
		if strings.Contains(lowered, "open box") || strings.Contains(lowered, "open-box") {
			return models.ConditionOpenBox
		}
		return models.ConditionNew
	case strings.Contains(lowered, "refurbished"):
		return models.ConditionRefurbished
	case strings.Contains(lowered, "used"), strings.Contains(lowered, "pre-owned"):
		return models.ConditionUsed
	default:
		return models.ConditionUnknown
	}
}
