// Package stats derives the statistics object a report is rendered from.
// Aggregate is a pure function of the record list; it holds no state and is
// safe to run with arbitrary parallelism across jobs.
package stats

import (
	"container/heap"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
)

// TopRecordLimit is the fixed size of the top-savings list.
const TopRecordLimit = 10

// Aggregate computes counts, distributions, savings roll-ups and the top-N
// list in a single pass. Distributions are pre-seeded so every enum member
// is present even at zero; an empty input is valid zero data, not an error.
func Aggregate(records []domain.Recommendation) domain.Statistics {
	result := domain.Statistics{
		TotalCount:              len(records),
		CategoryDistribution:    make(map[domain.Category]int, len(domain.Categories())),
		ImpactDistribution:      make(map[domain.Impact]int, len(domain.Impacts())),
		TotalPotentialSavings:   decimal.Zero,
		AverageSavingsPerRecord: decimal.Zero,
		TopRecords:              []domain.RankedRecommendation{},
	}
	for _, c := range domain.Categories() {
		result.CategoryDistribution[c] = 0
	}
	for _, i := range domain.Impacts() {
		result.ImpactDistribution[i] = 0
	}

	top := &topHeap{limit: TopRecordLimit}
	for i, record := range records {
		result.CategoryDistribution[record.Category]++
		result.ImpactDistribution[record.BusinessImpact]++
		result.TotalPotentialSavings = result.TotalPotentialSavings.Add(record.PotentialSavings)
		if result.Currency == "" && record.Currency != "" {
			result.Currency = record.Currency
		}
		top.offer(entry{record: record, order: i})
	}

	if result.TotalCount > 0 {
		result.AverageSavingsPerRecord = result.TotalPotentialSavings.
			Div(decimal.NewFromInt(int64(result.TotalCount)))
	}

	result.TopRecords = top.ranked()
	return result
}

type entry struct {
	record domain.Recommendation
	order  int
}

// topHeap keeps the limit highest-savings entries as a min-heap, so each of
// the n records costs O(log limit). Ties break on original row order: among
// equal savings, the earlier row outranks the later one.
type topHeap struct {
	entries []entry
	limit   int
}

func (h *topHeap) Len() int { return len(h.entries) }

func (h *topHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if !a.record.PotentialSavings.Equal(b.record.PotentialSavings) {
		return a.record.PotentialSavings.LessThan(b.record.PotentialSavings)
	}
	return a.order > b.order
}

func (h *topHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *topHeap) Push(x any) { h.entries = append(h.entries, x.(entry)) }

func (h *topHeap) Pop() any {
	last := len(h.entries) - 1
	e := h.entries[last]
	h.entries = h.entries[:last]
	return e
}

func (h *topHeap) offer(e entry) {
	if h.limit <= 0 {
		return
	}
	if len(h.entries) < h.limit {
		heap.Push(h, e)
		return
	}
	weakest := h.entries[0]
	if e.record.PotentialSavings.GreaterThan(weakest.record.PotentialSavings) ||
		(e.record.PotentialSavings.Equal(weakest.record.PotentialSavings) && e.order < weakest.order) {
		h.entries[0] = e
		heap.Fix(h, 0)
	}
}

func (h *topHeap) ranked() []domain.RankedRecommendation {
	selected := append([]entry{}, h.entries...)
	sort.Slice(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if !a.record.PotentialSavings.Equal(b.record.PotentialSavings) {
			return a.record.PotentialSavings.GreaterThan(b.record.PotentialSavings)
		}
		return a.order < b.order
	})

	ranked := make([]domain.RankedRecommendation, 0, len(selected))
	for i, e := range selected {
		ranked = append(ranked, domain.RankedRecommendation{Rank: i + 1, Recommendation: e.record})
	}
	return ranked
}
