package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode   Category = "decode"
	CategoryEncode   Category = "encode"
	CategoryMemory   Category = "memory"
	CategoryStorage  Category = "storage"
	CategoryConfig   Category = "config"
	CategoryInput    Category = "input"
	CategoryContract Category = "contract"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.  An error that already carries
// the memory category keeps it, so a low-memory condition raised deep in a
// codec is still recognisable at the engine boundary.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	if category != CategoryMemory && IsLowMemory(err) {
		category = CategoryMemory
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// IsLowMemory reports whether err was caused by an exhausted memory budget.
func IsLowMemory(err error) bool {
	return errors.Is(err, ErrLowMemory)
}

// ContractError is the panic value used when a component is driven out of
// sequence.  It signals a bug in the caller, never bad input.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", CategoryContract, e.Op, e.Msg)
}

// Violation panics with a ContractError.
func Violation(op, msg string) {
	panic(&ContractError{Op: op, Msg: msg})
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrUnsupportedScheme = errors.New("unsupported uri scheme")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrEmptyInput        = errors.New("empty input")
	ErrZeroBounds        = errors.New("decoded bounds are zero")
	ErrLowMemory         = errors.New("not enough memory to process the photos")
	ErrNothingProcessed  = errors.New("no photos were processed")
	ErrWorkerPoolFull    = errors.New("worker queue full")
	ErrNotStarted        = errors.New("worker not started")
	ErrStopped           = errors.New("worker stopped before the job ran")
	ErrNotReady          = errors.New("no photo set is awaiting confirmation")
)
