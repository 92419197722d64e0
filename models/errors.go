package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeLaunch       = "LAUNCH_FAILED"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeBusy         = "BUSY"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// MsgNavigationFailed is the operator-facing message for every navigation failure.
const MsgNavigationFailed = "could not fetch data, target may be blocking access or timing out"

// ErrorDetail is the structured error in results and API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// IsBlockingStatus reports HTTP statuses that indicate the target refused
// or could not serve the request. Zero (unknown) is not blocking.
func IsBlockingStatus(status int) bool {
	switch {
	case status == 401, status == 403, status == 429:
		return true
	case status >= 500:
		return true
	}
	return false
}
