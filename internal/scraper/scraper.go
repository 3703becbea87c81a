// internal/scraper/scraper.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/dealhawk/dealhawk-backend/internal/config"
)

var ErrNotFound = errors.New("listing page not found")

// SelectorSet configures per-marketplace extraction. Empty selectors fall
// back to common metadata conventions (itemprop/og tags).
type SelectorSet struct {
	Price        string
	Currency     string
	Availability string
	SoldMarker   string
}

// Configured reports whether the set carries at least a price selector,
// the minimum needed for the fallback to be useful.
func (s SelectorSet) Configured() bool {
	return s.Price != ""
}

// Result is the outcome of one scrape attempt. Blocked is reported
// distinctly from ordinary failures so the orchestrator can escalate to
// manual remediation instead of burning retries.
type Result struct {
	Price    *float64
	Currency string
	InStock  bool
	Sold     bool
	Blocked  bool
}

type Scraper struct {
	client    *http.Client
	userAgent string
	log       *logrus.Entry
}

func New(cfg config.ScraperConfig) *Scraper {
	return &Scraper{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		log:       logrus.WithField("component", "scraper"),
	}
}

func (s *Scraper) Scrape(ctx context.Context, url string, sel SelectorSet) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if blockedStatus(resp.StatusCode) {
		s.log.WithFields(logrus.Fields{"url": url, "status": resp.StatusCode}).Warn("Scrape blocked by status code")
		return &Result{Blocked: true}, nil
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}

	if blockedDocument(doc) {
		s.log.WithField("url", url).Warn("Scrape blocked by bot-protection page")
		return &Result{Blocked: true}, nil
	}

	return s.extract(doc, sel), nil
}

func (s *Scraper) extract(doc *goquery.Document, sel SelectorSet) *Result {
	result := &Result{InStock: true}

	priceText := textFor(doc, sel.Price, `[itemprop="price"]`, `meta[property="og:price:amount"]`, ".price")
	if price, ok := parsePrice(priceText); ok {
		result.Price = &price
	}

	currency := textFor(doc, sel.Currency, `[itemprop="priceCurrency"]`, `meta[property="og:price:currency"]`)
	if currency != "" {
		result.Currency = strings.ToUpper(strings.TrimSpace(currency))
	}

	if avail := textFor(doc, sel.Availability, `[itemprop="availability"]`); avail != "" {
		lowered := strings.ToLower(avail)
		if strings.Contains(lowered, "outofstock") || strings.Contains(lowered, "out of stock") ||
			strings.Contains(lowered, "unavailable") {
			result.InStock = false
		}
	}

	if sel.SoldMarker != "" && doc.Find(sel.SoldMarker).Length() > 0 {
		result.Sold = true
		result.InStock = false
	}

	return result
}

// textFor tries the override selector first, then each fallback, returning
// the first non-empty text or content attribute.
func textFor(doc *goquery.Document, override string, fallbacks ...string) string {
	selectors := fallbacks
	if override != "" {
		selectors = append([]string{override}, fallbacks...)
	}
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if content, ok := node.Attr("content"); ok && strings.TrimSpace(content) != "" {
			return content
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return text
		}
	}
	return ""
}

var priceRe = regexp.MustCompile(`(\d{1,3}(?:[,.]\d{3})*(?:[.,]\d{2})?|\d+(?:[.,]\d{1,2})?)`)

func parsePrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	match := priceRe.FindString(text)
	if match == "" {
		return 0, false
	}
	// Normalize thousands separators; keep the final decimal point.
	normalized := strings.ReplaceAll(match, ",", "")
	if idx := strings.LastIndex(match, ","); idx != -1 && len(match)-idx-1 <= 2 {
		// European decimal comma
		normalized = strings.ReplaceAll(match[:idx], ".", "") + "." + match[idx+1:]
		normalized = strings.ReplaceAll(normalized, ",", "")
	}
	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

func blockedStatus(code int) bool {
	return code == http.StatusForbidden || code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

var botMarkers = []string{
	"captcha",
	"are you a human",
	"verify you are human",
	"access denied",
	"unusual traffic",
	"pardon our interruption",
}

func blockedDocument(doc *goquery.Document) bool {
	title := strings.ToLower(doc.Find("title").Text())
	for _, marker := range botMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	if doc.Find(`form[action*="captcha"], div.g-recaptcha, iframe[src*="captcha"]`).Length() > 0 {
		return true
	}
	return false
}
