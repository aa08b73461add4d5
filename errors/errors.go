package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryValidate  Category = "validate"
	CategoryDecode    Category = "decode"
	CategoryEncode    Category = "encode"
	CategorySurface   Category = "surface"
	CategoryStorage   Category = "storage"
	CategoryAuth      Category = "auth"
	CategoryDisplay   Category = "display"
	CategoryConfig    Category = "config"
	CategoryTransient Category = "transient"
)

// PipelineError is the structured error type used throughout the module.
type PipelineError struct {
	Category  Category
	Op        string // operation name
	Err       error
	Retryable bool
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// New creates a non-retryable PipelineError.
func New(category Category, op string, err error) *PipelineError {
	return &PipelineError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable PipelineError.
func Transient(op string, err error) *PipelineError {
	return &PipelineError{Category: CategoryTransient, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// Sentinel errors for common failure modes.
var (
	// Pre-network validation failures; the user can immediately reselect.
	ErrInvalidType = errors.New("file is not an image")
	ErrTooLarge    = errors.New("file exceeds the size ceiling")

	// Compositor failures; picking a different source file is the recovery path.
	ErrDecodeFailed      = errors.New("image could not be decoded")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidRegion     = errors.New("crop region outside source bounds")
	ErrZeroSurface       = errors.New("output surface has zero size")

	// Persist-time failures.
	ErrStoreUnavailable = errors.New("blob store unavailable")
	ErrUnauthenticated  = errors.New("no authenticated user")

	// Session state violations (confirm while busy, begin after commit, ...).
	ErrSessionState = errors.New("operation not allowed in current session state")
)
