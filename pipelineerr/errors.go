// Package pipelineerr defines the domain error taxonomy shared by every
// layer of the pipeline: extraction, curation, validation, and the runner.
// Third-party errors (HTTP client, database driver, object store) are
// wrapped into a PipelineError at the boundary where they cross into the
// core, with the original preserved as Cause.
package pipelineerr

import (
	"errors"
	"fmt"
)

// Kind identifies which branch of the taxonomy an error belongs to.
type Kind string

const (
	KindBronzeExtraction Kind = "bronze_extraction"
	KindSilverCuration   Kind = "silver_curation"
	KindConnection       Kind = "connection"
	KindAuthentication   Kind = "authentication"
	KindConfiguration    Kind = "configuration"
	KindValidation       Kind = "validation"
	KindChecksum         Kind = "checksum"
	KindSourceNotFound   Kind = "source_not_found"
	KindRetryExhausted   Kind = "retry_exhausted"
	KindCircuitOpen      Kind = "circuit_open"
	KindLateData         Kind = "late_data"
)

// PipelineError is the base error type for the whole taxonomy. It carries
// structured context instead of encoding everything into the message
// string, so callers can branch on Kind or inspect Details without
// re-parsing text.
type PipelineError struct {
	Kind       Kind
	Message    string
	System     string
	Entity     string
	Details    map[string]any
	Suggestion string
	Cause      error
}

func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.System != "" || e.Entity != "" {
		msg = fmt.Sprintf("%s [system=%s entity=%s]", msg, e.System, e.Entity)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// New builds a PipelineError of the given kind.
func New(kind Kind, message string) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Details: map[string]any{}}
}

// Wrap preserves cause as the wrapped error, attaching the domain kind and
// message at the boundary where a third-party error crosses into the core.
func Wrap(kind Kind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Cause: cause, Details: map[string]any{}}
}

// WithSystem/WithEntity/WithDetail/WithSuggestion return the same error with
// additional context, for fluent construction at the call site.
func (e *PipelineError) WithSystem(system string) *PipelineError {
	e.System = system
	return e
}

func (e *PipelineError) WithEntity(entity string) *PipelineError {
	e.Entity = entity
	return e
}

func (e *PipelineError) WithDetail(key string, value any) *PipelineError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func (e *PipelineError) WithSuggestion(suggestion string) *PipelineError {
	e.Suggestion = suggestion
	return e
}

// Is allows errors.Is(err, pipelineerr.KindRetryExhausted-shaped sentinel)
// style checks by comparing Kind when the target is also a *PipelineError.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return pe.Kind == e.Kind
	}
	return false
}

// BronzeExtractionError reports a failed Bronze read.
func BronzeExtractionError(sourceType, sourcePath, loadPattern string, cause error) *PipelineError {
	return Wrap(KindBronzeExtraction, "source read failed", cause).
		WithDetail("source_type", sourceType).
		WithDetail("source_path", sourcePath).
		WithDetail("load_pattern", loadPattern)
}

// SilverCurationError reports a failed Bronze->Silver curation step.
func SilverCurationError(sourcePath, targetPath string, naturalKeys []string, historyMode string, cause error) *PipelineError {
	return Wrap(KindSilverCuration, "curation failed", cause).
		WithDetail("source_path", sourcePath).
		WithDetail("target_path", targetPath).
		WithDetail("natural_keys", naturalKeys).
		WithDetail("history_mode", historyMode)
}

// ConnectionError reports a failed database/API connection attempt.
func ConnectionError(host, connectionName string, cause error) *PipelineError {
	return Wrap(KindConnection, "connect failed", cause).
		WithDetail("host", host).
		WithDetail("connection_name", connectionName)
}

// AuthenticationError reports missing or rejected credentials.
func AuthenticationError(message string) *PipelineError {
	return New(KindAuthentication, message)
}

// ConfigurationError reports a structural issue discovered at load or run.
func ConfigurationError(message string) *PipelineError {
	return New(KindConfiguration, message)
}

// ValidationError holds a list of enumerated issues found at load time.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("validation: %s", e.Issues[0])
	}
	return fmt.Sprintf("validation: %d issues found", len(e.Issues))
}

func NewValidationError(issues []string) *ValidationError {
	return &ValidationError{Issues: issues}
}

// ChecksumError reports that a recorded hash does not match the bytes read.
func ChecksumError(path, expected, actual string) *PipelineError {
	return New(KindChecksum, "checksum mismatch").
		WithDetail("path", path).
		WithDetail("expected_sha256", expected).
		WithDetail("actual_sha256", actual)
}

// SourceNotFoundError reports a missing expected input partition.
func SourceNotFoundError(path string) *PipelineError {
	return New(KindSourceNotFound, "source partition not found").
		WithDetail("path", path)
}

// RetryExhaustedError wraps the last cause after a retry policy gives up.
func RetryExhaustedError(operation string, attempts int, cause error) *PipelineError {
	return Wrap(KindRetryExhausted, fmt.Sprintf("%s failed after %d attempts", operation, attempts), cause).
		WithDetail("operation", operation).
		WithDetail("attempts", attempts)
}

// CircuitOpenError reports a call refused by an open breaker.
func CircuitOpenError(breakerKey string) *PipelineError {
	return New(KindCircuitOpen, "circuit breaker open").
		WithDetail("breaker_key", breakerKey)
}

// LateDataError reports that reject mode encountered late records.
func LateDataError(count int, thresholdDays int) *PipelineError {
	return New(KindLateData, "late records rejected").
		WithDetail("late_record_count", count).
		WithDetail("threshold_days", thresholdDays)
}
