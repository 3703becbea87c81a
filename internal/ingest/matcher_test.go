// internal/ingest/matcher_test.go
package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealhawk/dealhawk-backend/internal/config"
	"github.com/dealhawk/dealhawk-backend/internal/marketplace"
	"github.com/dealhawk/dealhawk-backend/internal/models"
)

func testMatcherConfig() config.MatcherConfig {
	return config.MatcherConfig{
		CoverageThreshold:  0.6,
		PriceBandLow:       0.3,
		PriceBandHigh:      1.5,
		PackRatioThreshold: 2.5,
		ScoreThreshold:     0.5,
		GTINScoreBonus:     0.4,
		BrandScoreBonus:    0.15,
		MPNScoreBonus:      0.1,
		PackAgreeBonus:     0.1,
		LotPenalty:         0.25,
		TopKPerGroup:       3,
		MinFeedbackPct:     95.0,
		MinFeedbackScore:   100,
		AccessoryKeywords:  []string{"case for", "charger for", "screen protector"},
	}
}

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	matcher, err := NewMatcher(testMatcherConfig())
	require.NoError(t, err)
	return matcher
}

func floatPtr(v float64) *float64 { return &v }

func TestGTINAlwaysAcceptedRegardlessOfCoverage(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "Sony WH-1000XM5"}

	candidate := marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Completely unrelated words here",
		GTIN:   "0012345678905",
	}

	verdict := matcher.Evaluate(product, "sony wh-1000xm5 headphones", candidate)
	assert.True(t, verdict.Accepted)
	assert.True(t, verdict.Authoritative)
	assert.Zero(t, verdict.Coverage)
}

func TestNegativeKeywordRejectsEvenWithGTIN(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{
		Title:            "Sony WH-1000XM5",
		NegativeKeywords: []string{"ear pads"},
	}

	candidate := marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Replacement Ear-Pads for Sony WH-1000XM5",
		GTIN:   "0012345678905",
	}

	verdict := matcher.Evaluate(product, "sony wh-1000xm5", candidate)
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "negative keyword")
}

func TestAccessoryKeywordRejects(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "Sony WH-1000XM5"}

	candidate := marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Hard Case for Sony WH-1000XM5 Headphones",
		GTIN:   "0012345678905",
	}

	verdict := matcher.Evaluate(product, "sony wh-1000xm5", candidate)
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "accessory keyword")
}

func TestBrandAndMPNAccepted(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "Sony WH-1000XM5", Brand: "Sony"}

	candidate := marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Premium wireless headphones black",
		Brand:  "sony",
		MPN:    "WH1000XM5/B",
	}

	verdict := matcher.Evaluate(product, "sony wh-1000xm5 headphones", candidate)
	assert.True(t, verdict.Accepted)
	assert.True(t, verdict.Authoritative)
}

func TestPackMismatchRules(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "AA Batteries"}

	// Implicit query quantity 1, lot title without parseable quantity.
	verdict := matcher.Evaluate(product, "duracell aa batteries", marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Assorted Lot of 12 Duracell AA Batteries",
	})
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "lot listing")

	// 6 vs 24: ratio 4.0 exceeds 2.5.
	verdict = matcher.Evaluate(product, "duracell aa batteries 6 pack", marketplace.CandidateListing{
		ItemID: "2",
		Title:  "Duracell AA Batteries 24 Pack",
	})
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "pack quantity mismatch")

	// 6 vs 12: ratio 2.0 passes this rule.
	verdict = matcher.Evaluate(product, "duracell aa batteries 6 pack", marketplace.CandidateListing{
		ItemID: "3",
		Title:  "Duracell AA Batteries 12 Pack",
	})
	assert.True(t, verdict.Accepted)
}

func TestExtractPackQuantity(t *testing.T) {
	qty, ok := ExtractPackQuantity("Duracell AA 24 Pack")
	assert.True(t, ok)
	assert.Equal(t, 24, qty)

	qty, ok = ExtractPackQuantity("Eggs by the dozen")
	assert.True(t, ok)
	assert.Equal(t, 12, qty)

	qty, ok = ExtractPackQuantity("100 ct bottle")
	assert.True(t, ok)
	assert.Equal(t, 100, qty)

	// "of 12" is not a parseable pack quantity.
	_, ok = ExtractPackQuantity("Assorted Lot of 12")
	assert.False(t, ok)
}

func TestPriceSanityBand(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{
		Title: "Acme Widget Deluxe Edition Bundle",
		MSRP:  floatPtr(100),
	}

	// Coverage 0.8 (4 of 5 query tokens), price inside [30, 150].
	accepted := matcher.Evaluate(product, "acme widget deluxe edition bundle", marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Acme Widget Deluxe Edition",
		Price:  floatPtr(145),
	})
	assert.True(t, accepted.Accepted)
	assert.False(t, accepted.Authoritative)

	// Same candidate at 160: coverage passes, price sanity fails.
	rejected := matcher.Evaluate(product, "acme widget deluxe edition bundle", marketplace.CandidateListing{
		ItemID: "2",
		Title:  "Acme Widget Deluxe Edition",
		Price:  floatPtr(160),
	})
	assert.False(t, rejected.Accepted)
	assert.Contains(t, rejected.Reason, "sanity band")
}

func TestMissingMSRPSkipsPriceSanity(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "Acme Widget Deluxe"}

	verdict := matcher.Evaluate(product, "acme widget deluxe", marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Acme Widget Deluxe",
		Price:  floatPtr(9999),
	})
	assert.True(t, verdict.Accepted)
}

func TestCoverageBelowThresholdRejected(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "Acme Widget Deluxe Edition Bundle", MSRP: floatPtr(100)}

	verdict := matcher.Evaluate(product, "acme widget deluxe edition bundle", marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Acme gadget",
		Price:  floatPtr(100),
	})
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "coverage")
}

func TestSellerQualityGate(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "Acme Widget"}

	verdict := matcher.Evaluate(product, "acme widget", marketplace.CandidateListing{
		ItemID:              "1",
		Title:               "Acme Widget",
		SellerFeedbackPct:   80,
		SellerFeedbackScore: 500,
	})
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "seller feedback")

	// Candidates without seller data pass the gate.
	verdict = matcher.Evaluate(product, "acme widget", marketplace.CandidateListing{
		ItemID: "2",
		Title:  "Acme Widget",
	})
	assert.True(t, verdict.Accepted)
}

func TestQueryVariants(t *testing.T) {
	matcher := newTestMatcher(t)
	product := &models.Product{Title: "Sony WH-1000XM5", Brand: "Sony"}

	variants := matcher.QueryVariants(product, "Sony WH-1000XM5 headphones")
	assert.GreaterOrEqual(t, len(variants), 2)
	assert.LessOrEqual(t, len(variants), 4)
	assert.Contains(t, variants, "Sony WH-1000XM5 headphones")
	assert.Contains(t, variants, `"Sony WH-1000XM5 headphones"`)
	assert.Contains(t, variants, `Sony "WH-1000XM5 headphones"`)

	gtin := matcher.QueryVariants(&models.Product{}, "0 12345 67890 5")
	assert.Contains(t, gtin, "012345678905")
}

func TestCompositeScoreWeightsComeFromConfig(t *testing.T) {
	product := &models.Product{Title: "Acme Widget Deluxe"}
	candidate := marketplace.CandidateListing{
		ItemID: "1",
		Title:  "Acme Widget Deluxe",
		MPN:    "AWD-100",
	}

	defaultMatcher := newTestMatcher(t)
	base := defaultMatcher.Evaluate(product, "acme widget deluxe", candidate)
	require.True(t, base.Accepted)
	assert.InDelta(t, 1.1, base.Score, 0.001)

	tuned := testMatcherConfig()
	tuned.MPNScoreBonus = 0.3
	tunedMatcher, err := NewMatcher(tuned)
	require.NoError(t, err)
	boosted := tunedMatcher.Evaluate(product, "acme widget deluxe", candidate)
	require.True(t, boosted.Accepted)
	assert.InDelta(t, 1.3, boosted.Score, 0.001)
}

func TestDiscountPercentHelper(t *testing.T) {
	pct := DiscountPercent(floatPtr(75), floatPtr(100))
	require.NotNil(t, pct)
	assert.Equal(t, 25, *pct)

	assert.Nil(t, DiscountPercent(floatPtr(75), nil))
	assert.Nil(t, DiscountPercent(nil, floatPtr(100)))
	assert.Nil(t, DiscountPercent(floatPtr(75), floatPtr(0)))
}
