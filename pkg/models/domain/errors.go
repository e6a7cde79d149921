package domain

import "fmt"

// ErrorCategory classifies why a job failed. The category name is the only
// error detail the status API exposes.
type ErrorCategory string

const (
	// ErrorValidation covers bad file shape, size, encoding or schema.
	ErrorValidation ErrorCategory = "validation"
	// ErrorData marks an internal contract violation between pipeline steps.
	ErrorData ErrorCategory = "data"
	// ErrorResource marks a timeout or memory exhaustion inside a step.
	ErrorResource ErrorCategory = "resource"
	// ErrorTemplate marks a broken report template.
	ErrorTemplate ErrorCategory = "template"
	// ErrorTimeout is set by the supervisory sweep on stuck jobs.
	ErrorTimeout ErrorCategory = "timeout"
)

// Retryable reports whether a supervisor may re-enqueue a job that failed
// with this category. Validation, data and template failures are
// deterministic; retrying them cannot change the outcome.
func (c ErrorCategory) Retryable() bool {
	return c == ErrorResource || c == ErrorTimeout
}

// PipelineError is the error type every pipeline step returns. The
// orchestrator maps it onto the job's terminal failure category.
type PipelineError struct {
	Category ErrorCategory
	Rule     string
	cause    error
}

func (e *PipelineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Rule, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Rule)
}

func (e *PipelineError) Unwrap() error { return e.cause }

func NewPipelineError(category ErrorCategory, rule string) *PipelineError {
	return &PipelineError{Category: category, Rule: rule}
}

func WrapPipelineError(category ErrorCategory, rule string, cause error) *PipelineError {
	return &PipelineError{Category: category, Rule: rule, cause: cause}
}
