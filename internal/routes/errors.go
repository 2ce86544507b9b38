package routes

import (
	"errors"
	"net/http"

	"stream-access-guard/internal/auth"
	"stream-access-guard/internal/schedule"
	"stream-access-guard/internal/storage"
	"stream-access-guard/internal/tempaccess"
)

// HTTPError represents an error with an associated HTTP status code and user message
type HTTPError struct {
	Err        error    // The underlying error
	StatusCode int      // HTTP status code
	Message    string   // User-friendly message
	StopCodes  []string // Optional stop codes for client-side handling
	Internal   bool     // Whether this is an internal error (hide details from user)
}

// ErrorInfo contains error metadata for user-facing errors
type ErrorInfo struct {
	Message   string   // User-friendly message
	StopCodes []string // Optional stop codes for client-side application
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, err error, message string, stopCodes ...string) *HTTPError {
	return &HTTPError{
		Err:        err,
		StatusCode: statusCode,
		Message:    message,
		StopCodes:  stopCodes,
		Internal:   statusCode >= 500,
	}
}

// Routes-specific errors (that don't conflict with other packages)
var (
	// Authentication errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrInvalidRequest      = errors.New("invalid request")
	ErrMissingParameter    = errors.New("missing required parameter")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrEmptyRestrictedList = errors.New("restricted IP policy requires at least one allow-list entry")

	// Resource errors
	ErrDeviceNotFound = errors.New("device not found")
	ErrRuleNotFound   = errors.New("time rule not found")

	// Internal errors
	ErrInternalServer     = errors.New("internal server error")
	ErrStoreUnavailable   = errors.New("state store unavailable, cannot evaluate")
	ErrServiceUnavailable = errors.New("service is temporarily unavailable")
)

// errorStatusMap maps errors to HTTP status codes
var errorStatusMap = map[error]int{
	// 400 Bad Request
	ErrInvalidRequest:             http.StatusBadRequest,
	ErrMissingParameter:           http.StatusBadRequest,
	ErrInvalidParameter:           http.StatusBadRequest,
	ErrEmptyRestrictedList:        http.StatusBadRequest,
	schedule.ErrInvalidTimeFormat: http.StatusBadRequest,
	schedule.ErrInvalidTimeRange:  http.StatusBadRequest,
	schedule.ErrInvalidDayOfWeek:  http.StatusBadRequest,
	tempaccess.ErrInvalidDuration: http.StatusBadRequest,

	// 401 Unauthorized
	ErrUnauthorized:        http.StatusUnauthorized,
	auth.ErrNonValidToken:  http.StatusUnauthorized,
	auth.ErrBadCredentials: http.StatusUnauthorized,

	// 404 Not Found
	ErrDeviceNotFound:   http.StatusNotFound,
	ErrRuleNotFound:     http.StatusNotFound,
	storage.ErrNotFound: http.StatusNotFound,

	// 409 Conflict
	schedule.ErrOverlappingRules: http.StatusConflict,

	// 500 Internal Server Error
	ErrInternalServer: http.StatusInternalServerError,

	// 503 Service Unavailable
	ErrStoreUnavailable:   http.StatusServiceUnavailable,
	ErrServiceUnavailable: http.StatusServiceUnavailable,
}

// errorInfoMap maps errors to user-friendly messages and optional stop codes
var errorInfoMap = map[error]ErrorInfo{
	ErrUnauthorized: {
		Message:   "Authentication required",
		StopCodes: []string{"AUTH_REQUIRED"},
	},
	auth.ErrNonValidToken: {
		Message:   "Invalid or expired authentication token",
		StopCodes: []string{"AUTH_INVALID_TOKEN"},
	},
	auth.ErrBadCredentials: {
		Message:   "Invalid credentials provided",
		StopCodes: []string{"AUTH_INVALID_CREDENTIALS"},
	},

	ErrInvalidRequest: {
		Message:   "Invalid request format",
		StopCodes: []string{"INVALID_REQUEST"},
	},
	ErrMissingParameter: {
		Message:   "Required parameter is missing",
		StopCodes: []string{"MISSING_PARAMETER"},
	},
	ErrInvalidParameter: {
		Message:   "Invalid parameter value",
		StopCodes: []string{"INVALID_PARAMETER"},
	},
	ErrEmptyRestrictedList: {
		Message:   "A restricted IP policy needs at least one allowed IP or CIDR",
		StopCodes: []string{"EMPTY_RESTRICTED_LIST"},
	},
	schedule.ErrInvalidTimeRange: {
		Message:   "End time must be after start time on the same day",
		StopCodes: []string{"INVALID_TIME_RANGE"},
	},
	schedule.ErrOverlappingRules: {
		Message:   "The rule overlaps an existing rule for this day",
		StopCodes: []string{"RULE_OVERLAP"},
	},
	tempaccess.ErrInvalidDuration: {
		Message:   "Temporary access duration must be between 1 minute and 1 year",
		StopCodes: []string{"INVALID_DURATION"},
	},

	ErrDeviceNotFound: {
		Message:   "Device not found",
		StopCodes: []string{"DEVICE_NOT_FOUND"},
	},
	ErrRuleNotFound: {
		Message:   "Time rule not found",
		StopCodes: []string{"RULE_NOT_FOUND"},
	},

	// Internal (no stop codes for internal errors)
	ErrInternalServer: {
		Message: "An internal error occurred",
	},
	ErrStoreUnavailable: {
		Message: "Cannot evaluate the request right now",
	},
	ErrServiceUnavailable: {
		Message: "Service is temporarily unavailable",
	},
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	// Check if it's already an HTTPError
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}

	// Check direct match
	if status, ok := errorStatusMap[err]; ok {
		return status
	}

	// Check if error wraps a known error
	for knownErr, status := range errorStatusMap {
		if errors.Is(err, knownErr) {
			return status
		}
	}

	// Default to 500 Internal Server Error
	return http.StatusInternalServerError
}

// GetErrorInfo returns error information including message and stop codes
func GetErrorInfo(err error) ErrorInfo {
	// Check if it's an HTTPError with custom info
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return ErrorInfo{
			Message:   httpErr.Message,
			StopCodes: httpErr.StopCodes,
		}
	}

	// Check direct match
	if info, ok := errorInfoMap[err]; ok {
		return info
	}

	// Check if error wraps a known error
	for knownErr, info := range errorInfoMap {
		if errors.Is(err, knownErr) {
			return info
		}
	}

	// For unknown errors, return a generic message for 5xx, specific for others
	status := GetErrorStatus(err)
	if status >= 500 {
		return ErrorInfo{Message: "An internal error occurred"}
	}
	return ErrorInfo{Message: err.Error()}
}
