package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents standardized error codes for the API
type ErrorCode string

const (
	// Client Error Codes (4xx)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodeCacheNotFound    ErrorCode = "CACHE_NOT_FOUND"
	ErrorCodeEntryNotFound    ErrorCode = "ENTRY_NOT_FOUND"
	ErrorCodeJobNotFound      ErrorCode = "JOB_NOT_FOUND"
	ErrorCodeCacheExists      ErrorCode = "CACHE_ALREADY_EXISTS"
	ErrorCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrorCodeInvalidKey       ErrorCode = "INVALID_KEY"

	// Server Error Codes (5xx)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeQueryFailed   ErrorCode = "QUERY_FAILED"
	ErrorCodeQueryTimeout  ErrorCode = "QUERY_TIMEOUT"
	ErrorCodeStoreFailed   ErrorCode = "STORE_FAILED"
	ErrorCodeJobFailed     ErrorCode = "JOB_EXECUTION_FAILED"
)

// APIError represents a standardized API error response
type APIError struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SendError sends a standardized error response
func SendError(c *gin.Context, statusCode int, code ErrorCode, message string) {
	c.JSON(statusCode, &APIError{
		Error:     "Request failed",
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// SendCacheNotFoundError sends a standardized cache not found error
func SendCacheNotFoundError(c *gin.Context, cacheName string) {
	SendError(c, http.StatusNotFound, ErrorCodeCacheNotFound,
		"Cache '"+cacheName+"' not found")
}

// SendEntryNotFoundError sends a standardized entry not found error
func SendEntryNotFoundError(c *gin.Context, key, cacheName string) {
	SendError(c, http.StatusNotFound, ErrorCodeEntryNotFound,
		"Entry '"+key+"' not found in cache '"+cacheName+"'")
}

// SendJobNotFoundError sends a standardized job not found error
func SendJobNotFoundError(c *gin.Context, jobID string) {
	SendError(c, http.StatusNotFound, ErrorCodeJobNotFound,
		"Job '"+jobID+"' not found")
}

// SendCacheExistsError sends a standardized cache already exists error
func SendCacheExistsError(c *gin.Context, cacheName string) {
	SendError(c, http.StatusConflict, ErrorCodeCacheExists,
		"Cache '"+cacheName+"' already exists")
}

// SendInvalidJSONError sends a standardized invalid JSON error
func SendInvalidJSONError(c *gin.Context, err error) {
	SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON,
		"Invalid JSON in request body: "+err.Error())
}

// SendInternalError sends a standardized internal server error
func SendInternalError(c *gin.Context, operation string, err error) {
	SendError(c, http.StatusInternalServerError, ErrorCodeInternalError,
		"Internal error during "+operation+": "+err.Error())
}

// SendQueryError sends a standardized query failure error
func SendQueryError(c *gin.Context, cacheName string, err error) {
	SendError(c, http.StatusInternalServerError, ErrorCodeQueryFailed,
		"Query failed on cache '"+cacheName+"': "+err.Error())
}

// SendQueryTimeoutError sends a standardized query timeout error
func SendQueryTimeoutError(c *gin.Context, cacheName string, err error) {
	SendError(c, http.StatusGatewayTimeout, ErrorCodeQueryTimeout,
		"Query timed out on cache '"+cacheName+"': "+err.Error())
}
