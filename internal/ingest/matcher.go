// internal/ingest/matcher.go
package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/marketplace"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

// Matcher decides whether a marketplace search result is confidently the
// same product and worth materializing as a deal. It is stateless after
// construction; the stop-word set is loaded once and shared.
type Matcher struct {
	cfg       config.MatcherConfig
	stopWords map[string]struct{}
	log       *logrus.Entry
}

func NewMatcher(cfg config.MatcherConfig) (*Matcher, error) {
	stopWords, err := LoadStopWords(cfg.StopWordsPath)
	if err != nil {
		return nil, fmt.Errorf("loading stop words: %w", err)
	}
	return &Matcher{
		cfg:       cfg,
		stopWords: stopWords,
		log:       logrus.WithField("component", "matcher"),
	}, nil
}

// Verdict is the outcome of evaluating one candidate.
type Verdict struct {
	Accepted      bool
	Authoritative bool // GTIN or brand+MPN identity, not fuzzy title match
	Coverage      float64
	Score         float64
	Reason        string
}

func reject(reason string) Verdict {
	return Verdict{Reason: reason}
}

// Evaluate runs the verify gates and the matching hierarchy for one
// candidate. Exclusion gates (accessory keywords, pack mismatch, negative
// keywords) run before the hierarchy, so even a GTIN match cannot rescue an
// excluded title.
func (m *Matcher) Evaluate(product *models.Product, query string, candidate marketplace.CandidateListing) Verdict {
	title := candidate.Title
	if strings.TrimSpace(title) == "" {
		return reject("empty title")
	}

	loweredTitle := strings.ToLower(title)
	for _, keyword := range m.cfg.AccessoryKeywords {
		if keyword != "" && strings.Contains(loweredTitle, strings.ToLower(keyword)) {
			return reject("accessory keyword: " + keyword)
		}
	}

	if reason, mismatch := m.packMismatch(query, title); mismatch {
		return reject(reason)
	}

	normalizedTitle := NormalizeAlnum(title)
	for _, keyword := range product.NegativeKeywords {
		normalized := NormalizeAlnum(keyword)
		if normalized != "" && strings.Contains(normalizedTitle, normalized) {
			return reject("negative keyword: " + keyword)
		}
	}

	if reason, bad := m.sellerGate(candidate); bad {
		return reject(reason)
	}

	queryTokens := Tokenize(query, m.stopWords)
	titleTokens := Tokenize(title, m.stopWords)
	coverage := Coverage(queryTokens, titleTokens)

	verdict := Verdict{Coverage: coverage}

	switch {
	case candidate.GTIN != "":
		verdict.Accepted = true
		verdict.Authoritative = true
	case candidate.Brand != "" && candidate.MPN != "" && strings.EqualFold(candidate.Brand, product.Brand):
		verdict.Accepted = true
		verdict.Authoritative = true
	default:
		if coverage < m.cfg.CoverageThreshold {
			return reject(fmt.Sprintf("coverage %.2f below threshold", coverage))
		}
		if reason, bad := m.priceSanity(product, candidate); bad {
			return reject(reason)
		}
		verdict.Accepted = true
	}

	verdict.Score = m.compositeScore(product, query, title, candidate, coverage)
	if !verdict.Authoritative && verdict.Score < m.cfg.ScoreThreshold {
		return reject(fmt.Sprintf("composite score %.2f below threshold", verdict.Score))
	}

	return verdict
}

// priceSanity rejects non-authoritative candidates priced outside the
// [low,high]×MSRP band; accessory bundles and outliers live out there.
// No MSRP or no price means the check is skipped, not failed.
func (m *Matcher) priceSanity(product *models.Product, candidate marketplace.CandidateListing) (string, bool) {
	if product.MSRP == nil || *product.MSRP <= 0 || candidate.Price == nil {
		return "", false
	}
	low := m.cfg.PriceBandLow * *product.MSRP
	high := m.cfg.PriceBandHigh * *product.MSRP
	if *candidate.Price < low || *candidate.Price > high {
		return fmt.Sprintf("price %.2f outside sanity band [%.2f, %.2f]", *candidate.Price, low, high), true
	}
	return "", false
}

// sellerGate applies the marketplace seller-quality thresholds when the
// candidate carries seller data at all; scrape-sourced candidates without
// it pass through.
func (m *Matcher) sellerGate(candidate marketplace.CandidateListing) (string, bool) {
	if candidate.SellerFeedbackScore == 0 && candidate.SellerFeedbackPct == 0 {
		return "", false
	}
	if candidate.SellerFeedbackPct < m.cfg.MinFeedbackPct {
		return fmt.Sprintf("seller feedback %.1f%% below minimum", candidate.SellerFeedbackPct), true
	}
	if candidate.SellerFeedbackScore < m.cfg.MinFeedbackScore {
		return fmt.Sprintf("seller score %d below minimum", candidate.SellerFeedbackScore), true
	}
	if m.cfg.RequireTopRated && !candidate.SellerTopRated {
		return "seller not top-rated", true
	}
	return "", false
}

// packMismatch compares parseable pack quantities between query and title.
// A query without an explicit quantity counts as quantity 1. A lot-style
// title with no parseable quantity is rejected outright; with quantities on
// both sides, a ratio beyond the threshold is a different sellable unit.
func (m *Matcher) packMismatch(query, title string) (string, bool) {
	titleQty, titleHasQty := ExtractPackQuantity(title)

	if !titleHasQty {
		if LotAmbiguous(title) {
			return "lot listing without parseable quantity", true
		}
		return "", false
	}

	queryQty, queryHasQty := ExtractPackQuantity(query)
	if !queryHasQty {
		queryQty = 1
	}

	larger, smaller := float64(titleQty), float64(queryQty)
	if smaller > larger {
		larger, smaller = smaller, larger
	}
	if smaller > 0 && larger/smaller > m.cfg.PackRatioThreshold {
		return fmt.Sprintf("pack quantity mismatch: query %d vs title %d", queryQty, titleQty), true
	}
	return "", false
}

// compositeScore ranks accepted candidates: structural identity signals and
// pack agreement push up, lot ambiguity pushes down, and title coverage
// carries the base weight.
func (m *Matcher) compositeScore(product *models.Product, query, title string, candidate marketplace.CandidateListing, coverage float64) float64 {
	score := coverage

	if candidate.GTIN != "" {
		score += m.cfg.GTINScoreBonus
	}
	if candidate.Brand != "" && strings.EqualFold(candidate.Brand, product.Brand) {
		score += m.cfg.BrandScoreBonus
	}
	if candidate.MPN != "" {
		score += m.cfg.MPNScoreBonus
	}

	queryQty, queryHasQty := ExtractPackQuantity(query)
	titleQty, titleHasQty := ExtractPackQuantity(title)
	if queryHasQty && titleHasQty && queryQty == titleQty {
		score += m.cfg.PackAgreeBonus
	}

	if LotAmbiguous(title) {
		score -= m.cfg.LotPenalty
	}

	return math.Max(score, 0)
}

var packQtyRe = regexp.MustCompile(`(?i)\b(\d{1,4})\s*[- ]?\s*(?:packs?|pk|ct|count|pcs|pc)\b`)
var dozenRe = regexp.MustCompile(`(?i)\bdozen\b`)

// ExtractPackQuantity parses an explicit pack quantity from text, via
// "<number> pack/pk/ct/count/pc/pcs" or the word "dozen".
func ExtractPackQuantity(text string) (int, bool) {
	if match := packQtyRe.FindStringSubmatch(text); match != nil {
		if qty, err := strconv.Atoi(match[1]); err == nil && qty > 0 {
			return qty, true
		}
	}
	if dozenRe.MatchString(text) {
		return 12, true
	}
	return 0, false
}

var lotRe = regexp.MustCompile(`(?i)\b(lots?|assorted|variety)\b`)

// LotAmbiguous reports whether a title reads as a lot/assorted/variety
// listing, which is ambiguous about what a buyer actually receives.
func LotAmbiguous(title string) bool {
	return lotRe.MatchString(title)
}

// QueryVariants expands the canonical query into 2-4 recall variants:
// the raw query, the exact phrase, a brand-plus-quoted-remainder form, and
// a digits-only form when the query looks like a GTIN/UPC.
func (m *Matcher) QueryVariants(product *models.Product, query string) []string {
	variants := []string{query}

	if strings.Contains(strings.TrimSpace(query), " ") {
		variants = append(variants, `"`+query+`"`)
	}

	if product.Brand != "" {
		lowered := strings.ToLower(query)
		brand := strings.ToLower(product.Brand)
		if strings.HasPrefix(lowered, brand+" ") {
			remainder := strings.TrimSpace(query[len(product.Brand):])
			if remainder != "" {
				variants = append(variants, product.Brand+` "`+remainder+`"`)
			}
		}
	}

	if digits, ok := LooksLikeGTIN(query); ok {
		variants = append(variants, digits)
	}

	if len(variants) > 4 {
		variants = variants[:4]
	}
	return variants
}
