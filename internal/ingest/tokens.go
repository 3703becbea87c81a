// internal/ingest/tokens.go
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// defaultStopWords are filtered out of both query and title before
// computing coverage; they carry no product identity.
var defaultStopWords = []string{
	"a", "an", "and", "for", "from", "in", "new", "of", "on", "or",
	"the", "to", "with", "free", "shipping", "sale", "deal", "hot",
	"brand", "genuine", "official", "authentic", "original", "oem",
}

// synonyms canonicalize common marketplace spellings so "ps5" and
// "playstation 5" land on the same token.
var synonyms = map[string]string{
	"ps5":         "playstation5",
	"ps4":         "playstation4",
	"playstation": "playstation5",
	"xsx":         "xboxseriesx",
	"tv":          "television",
	"hdd":         "harddrive",
	"ssd":         "solidstatedrive",
	"gb":          "gigabyte",
	"tb":          "terabyte",
}

// LoadStopWords returns the stop-word set, from the override file when
// given, else the built-in defaults. Called once at matcher construction;
// the returned set is immutable afterwards and safe to share across
// concurrent matching calls.
func LoadStopWords(path string) (map[string]struct{}, error) {
	set := make(map[string]struct{})

	if path == "" {
		for _, w := range defaultStopWords {
			set[w] = struct{}{}
		}
		return set, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stop-words file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word != "" && !strings.HasPrefix(word, "#") {
			set[word] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stop-words file: %w", err)
	}
	return set, nil
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeAlnum lowercases and strips everything but letters and digits.
// Negative-keyword matching runs on this form so punctuation cannot dodge
// a configured exclusion.
func NormalizeAlnum(s string) string {
	return nonAlnumRe.ReplaceAllString(strings.ToLower(s), "")
}

// Tokenize splits text into a normalized, stop-word-filtered,
// synonym-canonicalized word set.
func Tokenize(text string, stopWords map[string]struct{}) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, raw := range nonAlnumRe.Split(strings.ToLower(text), -1) {
		if raw == "" {
			continue
		}
		if _, stop := stopWords[raw]; stop {
			continue
		}
		if canonical, ok := synonyms[raw]; ok {
			raw = canonical
		}
		tokens[raw] = struct{}{}
	}
	return tokens
}

// Coverage is the fraction of query tokens also present in the title set.
// An empty query set yields zero.
func Coverage(queryTokens, titleTokens map[string]struct{}) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	matched := 0
	for token := range queryTokens {
		if _, ok := titleTokens[token]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

var digitsOnlyRe = regexp.MustCompile(`^\d{10,14}$`)

// LooksLikeGTIN reports whether the query is a bare 10-14 digit
// GTIN/UPC/EAN once separators are removed.
func LooksLikeGTIN(query string) (string, bool) {
	stripped := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, query)
	if digitsOnlyRe.MatchString(stripped) && len(stripped) >= len(strings.TrimSpace(query))/2 {
		return stripped, true
	}
	return "", false
}
