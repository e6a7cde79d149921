package domain

import "github.com/shopspring/decimal"

type Category string

const (
	CategoryCost                  Category = "cost"
	CategorySecurity              Category = "security"
	CategoryReliability           Category = "reliability"
	CategoryOperationalExcellence Category = "operational_excellence"
	CategoryPerformance           Category = "performance"
	CategoryOther                 Category = "other"
)

// Categories returns every enum member in a stable order. Distribution maps
// are seeded from this list so a zero count is never an absent key.
func Categories() []Category {
	return []Category{
		CategoryCost,
		CategorySecurity,
		CategoryReliability,
		CategoryOperationalExcellence,
		CategoryPerformance,
		CategoryOther,
	}
}

type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

func Impacts() []Impact {
	return []Impact{ImpactHigh, ImpactMedium, ImpactLow}
}

// Recommendation is one fully normalized cloud-optimization recommendation.
// Every field has a defined value once a row crosses the normalizer; absence
// is expressed as zero/other, never as a missing field.
type Recommendation struct {
	Category         Category
	BusinessImpact   Impact
	PotentialSavings decimal.Decimal
	Currency         string
	SubscriptionID   string
	ResourceGroup    string
	ResourceName     string
	ResourceType     string
	Recommendation   string
}
