package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindHealthCheckFailed     ErrorKind = "HealthCheckFailed"
	KindWeatherUnavailable    ErrorKind = "WeatherUnavailable"
	KindModelGenerationFailed ErrorKind = "ModelGenerationFailed"
	KindSimulationFailed      ErrorKind = "SimulationFailed"
	KindResultsUnavailable    ErrorKind = "ResultsUnavailable"
	KindExportPartialFailure  ErrorKind = "ExportPartialFailure"
	KindExportFailed          ErrorKind = "ExportFailed"
	KindInternal              ErrorKind = "Internal"
)

// Terminal reports whether a failure of this kind ends the run as failed.
// Export failures only decorate an otherwise successful result.
func (k ErrorKind) Terminal() bool {
	return k != KindExportPartialFailure && k != KindExportFailed
}

// StageError is the structured failure carried in results and over the wire.
type StageError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Timeout bool      `json:"timeout,omitempty"`
}

func (e *StageError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s at %s: %s (%s)", e.Kind, e.Stage, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Stage, e.Message)
}

// NewStageError builds an error of the stage's own kind.
func NewStageError(stage Stage, message string) *StageError {
	return &StageError{Kind: stage.ErrorKind(), Stage: stage, Message: message}
}

func (e *StageError) WithDetail(detail string) *StageError {
	e.Detail = detail
	return e
}

// NewTimeoutError reports that stage exceeded its deadline.
func NewTimeoutError(stage Stage, after time.Duration) *StageError {
	return &StageError{
		Kind:    stage.ErrorKind(),
		Stage:   stage,
		Message: fmt.Sprintf("stage timed out after %s", after),
		Timeout: true,
	}
}

// AsStageError converts any adapter error into a StageError for stage. Errors
// that already are StageErrors keep their kind and detail but are re-tagged
// with stage.
func AsStageError(stage Stage, err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		out := *se
		out.Stage = stage
		if out.Kind == "" {
			out.Kind = stage.ErrorKind()
		}
		return &out
	}
	return NewStageError(stage, err.Error())
}

// ValidationError lists everything wrong with a RunRequest.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid run request: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid run request: %d problems: %v", len(e.Problems), e.Problems)
}
