package domain

import "github.com/shopspring/decimal"

// RankedRecommendation pairs a recommendation with its 1-based position in
// the top-savings list.
type RankedRecommendation struct {
	Rank           int
	Recommendation Recommendation
}

// Statistics is the aggregate derived from a normalized recommendation set.
// It is the single source of truth for both renderers and the status API:
// its field names form a stable contract and must not drift.
type Statistics struct {
	TotalCount              int
	CategoryDistribution    map[Category]int
	ImpactDistribution      map[Impact]int
	TotalPotentialSavings   decimal.Decimal
	AverageSavingsPerRecord decimal.Decimal
	Currency                string
	TopRecords              []RankedRecommendation
}
