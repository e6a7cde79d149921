package domain

import "time"

type JobState string

const (
	JobStatePending     JobState = "pending"
	JobStateValidating  JobState = "validating"
	JobStateNormalizing JobState = "normalizing"
	JobStateAggregating JobState = "aggregating"
	JobStateRendering   JobState = "rendering"
	JobStateCompleted   JobState = "completed"
	JobStateFailed      JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

type ArtifactFormat string

const (
	FormatHTML ArtifactFormat = "html"
	FormatPDF  ArtifactFormat = "pdf"
)

func ParseFormat(s string) (ArtifactFormat, bool) {
	switch ArtifactFormat(s) {
	case FormatHTML:
		return FormatHTML, true
	case FormatPDF:
		return FormatPDF, true
	}
	return "", false
}

// UploadRef points at the bytes a user submitted. The blob key is the only
// handle the pipeline ever reads the source through.
type UploadRef struct {
	Key           string
	Filename      string
	ContentLength int64
}

// NormalizationWarnings carries the non-fatal counters produced while
// normalizing a batch.
type NormalizationWarnings struct {
	RowErrors         int
	Coercions         int
	UnknownCategories int
}

// ReportJob is the unit of orchestration. Only the job store mutates State,
// and every transition is a conditional write on the expected prior state.
type ReportJob struct {
	ID               string
	OwnerRef         string
	DedupeKey        string
	State            JobState
	SourceUpload     UploadRef
	RequestedFormats []ArtifactFormat
	TemplateID       string
	Statistics       *Statistics
	Artifacts        map[ArtifactFormat]string
	ErrorCategory    *ErrorCategory
	Warnings         NormalizationWarnings
	AttemptCount     int
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}
