package shared

import (
	"errors"
	"fmt"
)

// Error codes returned to callers. Every failure carries exactly one code
// plus a human-readable message; no failure is ever reported as a default
// low-confidence prediction.
const (
	CodeConfiguration          = "CONFIGURATION_ERROR"
	CodeUnknownDomain          = "UNKNOWN_DOMAIN"
	CodeUnknownTaskType        = "UNKNOWN_TASK_TYPE"
	CodeInputValidation        = "INPUT_VALIDATION_ERROR"
	CodeShapeMismatch          = "SHAPE_MISMATCH"
	CodeExplanationUnavailable = "EXPLANATION_UNAVAILABLE"
	CodeStageTimeout           = "STAGE_TIMEOUT"
	CodeNotFound               = "NOT_FOUND"
)

// EngineError is the base error type for all aiengine errors.
type EngineError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ConfigurationError indicates an invalid startup configuration. It is
// fatal and unrecoverable: initialization must fail fast.
type ConfigurationError struct {
	EngineError
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, details map[string]any) *ConfigurationError {
	return &ConfigurationError{EngineError{Code: CodeConfiguration, Message: message, Details: details}}
}

// UnknownDomainError indicates the task named a domain the registry does
// not declare. The task is not processed.
type UnknownDomainError struct {
	EngineError
	Domain DomainType
}

// NewUnknownDomainError creates a new UnknownDomainError.
func NewUnknownDomainError(domain DomainType) *UnknownDomainError {
	return &UnknownDomainError{
		EngineError: EngineError{Code: CodeUnknownDomain, Message: fmt.Sprintf("domain %q is not registered", domain)},
		Domain:      domain,
	}
}

// UnknownTaskTypeError indicates the task named a task type the domain's
// profile set does not declare.
type UnknownTaskTypeError struct {
	EngineError
	Domain   DomainType
	TaskType TaskType
}

// NewUnknownTaskTypeError creates a new UnknownTaskTypeError.
func NewUnknownTaskTypeError(domain DomainType, taskType TaskType) *UnknownTaskTypeError {
	return &UnknownTaskTypeError{
		EngineError: EngineError{
			Code:    CodeUnknownTaskType,
			Message: fmt.Sprintf("task type %q is not registered for domain %q", taskType, domain),
		},
		Domain:   domain,
		TaskType: taskType,
	}
}

// InputValidationError indicates the task payload does not match the
// profile schema. Field is the path of the offending field.
type InputValidationError struct {
	EngineError
	Field string
}

// NewInputValidationError creates a new InputValidationError for a field.
func NewInputValidationError(field, message string) *InputValidationError {
	return &InputValidationError{
		EngineError: EngineError{
			Code:    CodeInputValidation,
			Message: fmt.Sprintf("field %q: %s", field, message),
			Details: map[string]any{"field": field},
		},
		Field: field,
	}
}

// ShapeMismatchError indicates encoded features do not match the trunk's
// expected input width. It signals encoder/profile version skew, an
// internal inconsistency distinct from caller-input validation.
type ShapeMismatchError struct {
	EngineError
	Expected int
	Got      int
}

// NewShapeMismatchError creates a new ShapeMismatchError.
func NewShapeMismatchError(expected, got int) *ShapeMismatchError {
	return &ShapeMismatchError{
		EngineError: EngineError{
			Code:    CodeShapeMismatch,
			Message: fmt.Sprintf("encoded width %d does not match trunk input width %d", got, expected),
		},
		Expected: expected,
		Got:      got,
	}
}

// ExplanationUnavailableError indicates the activation snapshot is missing
// state required by the explanation strategy. It is isolated to the
// explanation stage; the already-computed prediction is unaffected.
type ExplanationUnavailableError struct {
	EngineError
}

// NewExplanationUnavailableError creates a new ExplanationUnavailableError.
func NewExplanationUnavailableError(message string) *ExplanationUnavailableError {
	return &ExplanationUnavailableError{EngineError{Code: CodeExplanationUnavailable, Message: message}}
}

// StageTimeoutError indicates one pipeline stage exceeded its timeout
// budget. Stage distinguishes encoding slowness from inference slowness.
type StageTimeoutError struct {
	EngineError
	Stage Stage
}

// NewStageTimeoutError creates a new StageTimeoutError.
func NewStageTimeoutError(stage Stage) *StageTimeoutError {
	return &StageTimeoutError{
		EngineError: EngineError{
			Code:    CodeStageTimeout,
			Message: fmt.Sprintf("stage %q exceeded its timeout budget", stage),
			Details: map[string]any{"stage": string(stage)},
		},
		Stage: stage,
	}
}

// ErrRecordNotFound indicates a prediction or explanation record is absent,
// either never written or past its retention window.
var ErrRecordNotFound = errors.New("record not found")

// IsPerTask reports whether err is a per-task error that should be returned
// to the caller without aborting the process.
func IsPerTask(err error) bool {
	var ue *UnknownDomainError
	var ut *UnknownTaskTypeError
	var iv *InputValidationError
	var sm *ShapeMismatchError
	var st *StageTimeoutError
	return errors.As(err, &ue) || errors.As(err, &ut) || errors.As(err, &iv) ||
		errors.As(err, &sm) || errors.As(err, &st)
}

// ErrorCode extracts the engine error code from err, "" if none.
func ErrorCode(err error) string {
	for err != nil {
		switch e := err.(type) {
		case *ConfigurationError:
			return e.Code
		case *UnknownDomainError:
			return e.Code
		case *UnknownTaskTypeError:
			return e.Code
		case *InputValidationError:
			return e.Code
		case *ShapeMismatchError:
			return e.Code
		case *ExplanationUnavailableError:
			return e.Code
		case *StageTimeoutError:
			return e.Code
		}
		err = errors.Unwrap(err)
	}
	return ""
}
