package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions
var (
	// ErrCacheNotFound is returned when a named cache is not found
	ErrCacheNotFound = errors.New("cache not found")

	// ErrCacheAlreadyExists is returned when trying to create a cache that already exists
	ErrCacheAlreadyExists = errors.New("cache already exists")

	// ErrTransformerNotFound is returned when no key transformer is registered
	// for a key type or identifier tag
	ErrTransformerNotFound = errors.New("key transformer not found")

	// ErrQueryTimeout is returned when a query exceeds its configured timeout
	ErrQueryTimeout = errors.New("query timed out")

	// ErrUnknownFetchMode is returned for a fetch mode the adapter does not know
	ErrUnknownFetchMode = errors.New("unknown fetch mode")

	// ErrFilterNotFound is returned when enabling a named filter the engine
	// has no registration for
	ErrFilterNotFound = errors.New("named filter not found")

	// ErrExtractorClosed is returned when extracting from a closed document extractor
	ErrExtractorClosed = errors.New("document extractor is closed")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// CacheNotFoundError represents a cache not found error with context
type CacheNotFoundError struct {
	CacheName string
}

func (e *CacheNotFoundError) Error() string {
	return fmt.Sprintf("cache named '%s' not found", e.CacheName)
}

func (e *CacheNotFoundError) Is(target error) bool {
	return target == ErrCacheNotFound
}

// NewCacheNotFoundError creates a new CacheNotFoundError
func NewCacheNotFoundError(cacheName string) *CacheNotFoundError {
	return &CacheNotFoundError{CacheName: cacheName}
}

// CacheAlreadyExistsError represents a cache already exists error with context
type CacheAlreadyExistsError struct {
	CacheName string
}

func (e *CacheAlreadyExistsError) Error() string {
	return fmt.Sprintf("cache named '%s' already exists", e.CacheName)
}

func (e *CacheAlreadyExistsError) Is(target error) bool {
	return target == ErrCacheAlreadyExists
}

// NewCacheAlreadyExistsError creates a new CacheAlreadyExistsError
func NewCacheAlreadyExistsError(cacheName string) *CacheAlreadyExistsError {
	return &CacheAlreadyExistsError{CacheName: cacheName}
}

// TransformerNotFoundError reports a key type or identifier tag without a
// registered transformer
type TransformerNotFoundError struct {
	KeyType string
	Tag     string
}

func (e *TransformerNotFoundError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("no key transformer registered for identifier tag '%s'", e.Tag)
	}
	return fmt.Sprintf("no key transformer registered for key type %s", e.KeyType)
}

func (e *TransformerNotFoundError) Is(target error) bool {
	return target == ErrTransformerNotFound
}

// NewTransformerNotFoundError creates an error for an unregistered key type
func NewTransformerNotFoundError(keyType string) *TransformerNotFoundError {
	return &TransformerNotFoundError{KeyType: keyType}
}

// NewTransformerTagNotFoundError creates an error for an unregistered identifier tag
func NewTransformerTagNotFoundError(tag string) *TransformerNotFoundError {
	return &TransformerNotFoundError{Tag: tag}
}

// QueryTimeoutError represents a query that exceeded its timeout
type QueryTimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query timed out after %v (timeout %v)", e.Elapsed, e.Timeout)
}

func (e *QueryTimeoutError) Is(target error) bool {
	return target == ErrQueryTimeout
}

// NewQueryTimeoutError creates a new QueryTimeoutError
func NewQueryTimeoutError(timeout, elapsed time.Duration) *QueryTimeoutError {
	return &QueryTimeoutError{Timeout: timeout, Elapsed: elapsed}
}

// UnknownFetchModeError reports an unrecognized fetch mode value
type UnknownFetchModeError struct {
	Mode string
}

func (e *UnknownFetchModeError) Error() string {
	return fmt.Sprintf("unknown fetch mode %s", e.Mode)
}

func (e *UnknownFetchModeError) Is(target error) bool {
	return target == ErrUnknownFetchMode
}

// NewUnknownFetchModeError creates a new UnknownFetchModeError
func NewUnknownFetchModeError(mode string) *UnknownFetchModeError {
	return &UnknownFetchModeError{Mode: mode}
}

// FilterNotFoundError reports a named filter with no engine registration
type FilterNotFoundError struct {
	FilterName string
}

func (e *FilterNotFoundError) Error() string {
	return fmt.Sprintf("named filter '%s' is not registered with the engine", e.FilterName)
}

func (e *FilterNotFoundError) Is(target error) bool {
	return target == ErrFilterNotFound
}

// NewFilterNotFoundError creates a new FilterNotFoundError
func NewFilterNotFoundError(name string) *FilterNotFoundError {
	return &FilterNotFoundError{FilterName: name}
}

// JobNotFoundError represents a job not found error with context
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job with ID '%s' not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// NewJobNotFoundError creates a new JobNotFoundError
func NewJobNotFoundError(jobID string) *JobNotFoundError {
	return &JobNotFoundError{JobID: jobID}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
