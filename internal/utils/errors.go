package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an AppError for status mapping.
type ErrorKind int

const (
	// KindInternal is the zero value and maps to a server error.
	KindInternal ErrorKind = iota
	// KindClientContract marks requests that violate the input contract.
	KindClientContract
	// KindNotFound marks lookups for absent resources.
	KindNotFound
	// KindDependencyNotLoaded marks calls made before a dependency finished loading.
	KindDependencyNotLoaded
	// KindPredictionFailed marks estimator failures on well-formed input.
	KindPredictionFailed
	// KindLoadError marks artifact or document load failures.
	KindLoadError
)

func (k ErrorKind) String() string {
	switch k {
	case KindClientContract:
		return "client_contract"
	case KindNotFound:
		return "not_found"
	case KindDependencyNotLoaded:
		return "dependency_not_loaded"
	case KindPredictionFailed:
		return "prediction_failed"
	case KindLoadError:
		return "load_error"
	default:
		return "internal"
	}
}

// AppError wraps an operation, human-facing message, and underlying error.
// Msg and Details are safe to return to clients; Err is only logged.
type AppError struct {
	Op      string
	Kind    ErrorKind
	Msg     string
	Details any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an internal AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Kind: KindInternal, Msg: msg, Err: err}
}

// NewKindError constructs an AppError of the given kind.
func NewKindError(kind ErrorKind, op, msg string, details any, err error) *AppError {
	return &AppError{Op: op, Kind: kind, Msg: msg, Details: details, Err: err}
}

// KindOf reports the kind of the first AppError in err's chain.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
