package ingest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
)

const (
	// MaxIdentifierLen bounds free-text identifier fields.
	MaxIdentifierLen = 256
	// MaxRecommendationLen bounds the recommendation text.
	MaxRecommendationLen = 2000
)

// RowError describes a single row that could not be normalized. Row errors
// never abort a batch.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// BatchResult separates "no valid records" (Records empty, counters tell
// why) from a structural failure, which the validator reports instead.
type BatchResult struct {
	Records           []domain.Recommendation
	RowErrors         []RowError
	Coercions         int
	UnknownCategories int
}

var categoryAliases = map[string]domain.Category{
	"cost":                   domain.CategoryCost,
	"security":               domain.CategorySecurity,
	"reliability":            domain.CategoryReliability,
	"highavailability":       domain.CategoryReliability,
	"high availability":      domain.CategoryReliability,
	"operational_excellence": domain.CategoryOperationalExcellence,
	"operational excellence": domain.CategoryOperationalExcellence,
	"operationalexcellence":  domain.CategoryOperationalExcellence,
	"performance":            domain.CategoryPerformance,
	"other":                  domain.CategoryOther,
}

// NormalizeAll maps every validated row onto a canonical recommendation.
// A malformed row is collected as a RowError; the rest of the batch keeps
// going. Data rows start at line 2, after the header.
func NormalizeAll(table *ValidatedTable) BatchResult {
	var result BatchResult
	for i, row := range table.Rows {
		record, stats, err := NormalizeRow(row)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Line: i + 2, Reason: err.Error()})
			continue
		}
		result.Records = append(result.Records, record)
		result.Coercions += stats.Coercions
		result.UnknownCategories += stats.UnknownCategories
	}
	return result
}

// RowStats counts the lossy decisions made while normalizing one row.
type RowStats struct {
	Coercions         int
	UnknownCategories int
}

// NormalizeRow turns one sanitized row into a Recommendation. Every field of
// the result has a defined value; lossy fallbacks are counted, not raised.
func NormalizeRow(row Row) (domain.Recommendation, RowStats, error) {
	var stats RowStats

	if rowBlank(row) {
		return domain.Recommendation{}, stats, fmt.Errorf("no value in any required column")
	}

	category, known := parseCategory(row[ColCategory])
	if !known {
		stats.UnknownCategories++
	}

	impact, known := parseImpact(row[ColBusinessImpact])
	if !known {
		stats.Coercions++
	}

	savings, coerced := parseSavings(row[ColPotentialSavings])
	if coerced {
		stats.Coercions++
	}

	record := domain.Recommendation{
		Category:         category,
		BusinessImpact:   impact,
		PotentialSavings: savings,
		Currency:         parseCurrency(row[ColCurrency]),
		SubscriptionID:   truncate(strings.TrimSpace(row[ColSubscriptionID]), MaxIdentifierLen),
		ResourceGroup:    truncate(strings.TrimSpace(row[ColResourceGroup]), MaxIdentifierLen),
		ResourceName:     truncate(strings.TrimSpace(row[ColResourceName]), MaxIdentifierLen),
		ResourceType:     truncate(strings.TrimSpace(row[ColResourceType]), MaxIdentifierLen),
		Recommendation:   truncate(strings.TrimSpace(row[ColRecommendation]), MaxRecommendationLen),
	}
	return record, stats, nil
}

func rowBlank(row Row) bool {
	for _, col := range RequiredColumns() {
		if strings.TrimSpace(row[col]) != "" {
			return false
		}
	}
	return true
}

func parseCategory(raw string) (domain.Category, bool) {
	key := strings.ToLower(strings.TrimSpace(stripQuote(raw)))
	if category, ok := categoryAliases[key]; ok {
		return category, true
	}
	return domain.CategoryOther, false
}

func parseImpact(raw string) (domain.Impact, bool) {
	switch strings.ToLower(strings.TrimSpace(stripQuote(raw))) {
	case "high":
		return domain.ImpactHigh, true
	case "medium":
		return domain.ImpactMedium, true
	case "low":
		return domain.ImpactLow, true
	}
	return domain.ImpactLow, false
}

// parseSavings parses a monetary cell, tolerating currency symbols and
// thousands separators. Anything that does not come out as a non-negative
// number defaults to zero; the second return reports whether a non-empty
// value was coerced.
func parseSavings(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(stripQuote(raw))
	if s == "" {
		return decimal.Zero, false
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == ' ', r == '$', r == '€', r == '£', r == '¥':
			// separators and currency markers
		default:
			return decimal.Zero, true
		}
	}

	value, err := decimal.NewFromString(b.String())
	if err != nil || value.IsNegative() {
		return decimal.Zero, true
	}
	return value, false
}

func parseCurrency(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(stripQuote(raw)))
	if len(s) != 3 {
		return "USD"
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "USD"
		}
	}
	return s
}

// stripQuote removes the sanitizer's neutralizing prefix before a cell is
// interpreted as an enum or number. The quote stays in free-text fields.
func stripQuote(s string) string {
	return strings.TrimPrefix(s, "'")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
