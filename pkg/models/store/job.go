package store

import "time"

// ReportJob is the row shape persisted in the job store. Statistics and
// Artifacts are stored as JSON documents; Formats as a comma-joined list.
type ReportJob struct {
	ID                string
	OwnerRef          string
	DedupeKey         string
	State             string
	SourceKey         string
	SourceFilename    string
	SourceSize        int64
	Formats           string
	TemplateID        string
	Statistics        []byte
	Artifacts         []byte
	ErrorCategory     *string
	RowErrors         int
	Coercions         int
	UnknownCategories int
	AttemptCount      int
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
}
