package api

import "time"

// Statistics is the persisted statistics contract. The JSON names below are
// consumed by the HTML charts, the PDF renderer and any downstream analytics
// view; renaming one is a breaking change.
type Statistics struct {
	TotalCount              int            `json:"total_count"`
	CategoryDistribution    map[string]int `json:"category_distribution"`
	ImpactDistribution      map[string]int `json:"impact_distribution"`
	TotalPotentialSavings   string         `json:"total_potential_savings"`
	AverageSavingsPerRecord string         `json:"average_savings_per_record"`
	Currency                string         `json:"currency"`
	TopRecords              []TopRecord    `json:"top_records"`
}

type TopRecord struct {
	Rank             int    `json:"rank"`
	ResourceName     string `json:"resource_name"`
	ResourceGroup    string `json:"resource_group"`
	ResourceType     string `json:"resource_type"`
	Category         string `json:"category"`
	BusinessImpact   string `json:"business_impact"`
	PotentialSavings string `json:"potential_savings"`
	Recommendation   string `json:"recommendation"`
}

type Warnings struct {
	RowErrors         int `json:"row_errors"`
	Coercions         int `json:"coercions"`
	UnknownCategories int `json:"unknown_categories"`
}

type Job struct {
	ID            string            `json:"id"`
	State         string            `json:"state"`
	Filename      string            `json:"filename"`
	Formats       []string          `json:"formats"`
	TemplateID    string            `json:"template_id"`
	ErrorCategory string            `json:"error_category,omitempty"`
	Statistics    *Statistics       `json:"statistics,omitempty"`
	Artifacts     map[string]string `json:"artifacts,omitempty"`
	Warnings      *Warnings         `json:"warnings,omitempty"`
	AttemptCount  int               `json:"attempt_count"`
	CreatedAt     time.Time         `json:"created_at"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

type SubmitResponse struct {
	Job       Job  `json:"job"`
	Duplicate bool `json:"duplicate"`
}

type ArtifactResponse struct {
	Format string `json:"format"`
	URL    string `json:"url"`
}
