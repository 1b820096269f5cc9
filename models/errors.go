package models

import "fmt"

// Error codes carried by AuditError and surfaced in API responses.
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeDNSFailure       = "DNS_FAILURE"
	ErrCodeTLSFailure       = "TLS_FAILURE"
	ErrCodeFetchTimeout     = "FETCH_TIMEOUT"
	ErrCodeRenderFailed     = "RENDER_FAILED"
	ErrCodeAuditTimeout     = "AUDIT_TIMEOUT"
	ErrCodeReportNotFound   = "REPORT_NOT_FOUND"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInternal         = "INTERNAL_ERROR"

	// Third-party capability error codes (PageSpeed, SERP lookups).
	ErrCodeCapabilityFailure     = "CAPABILITY_FAILURE"
	ErrCodeCapabilityAuthFailure = "CAPABILITY_AUTH_FAILURE"
	ErrCodeCapabilityRateLimited = "CAPABILITY_RATE_LIMITED"
)

// ErrorDetail is the error shape clients see in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuditError pairs a stable error code with a human-readable message and
// the underlying cause, which stays reachable through Unwrap.
type AuditError struct {
	Code    string
	Message string
	Err     error // wrapped cause
}

func (e *AuditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuditError) Unwrap() error {
	return e.Err
}

// NewAuditError creates a new AuditError.
func NewAuditError(code, message string, err error) *AuditError {
	return &AuditError{Code: code, Message: message, Err: err}
}

// ToDetail strips the wrapped cause for the API response, leaving only
// the code and message.
func (e *AuditError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// IsFetchFailure reports whether the error code denotes an unreachable
// target, the only fault class that aborts an audit outright.
func (e *AuditError) IsFetchFailure() bool {
	switch e.Code {
	case ErrCodeFetchFailed, ErrCodeDNSFailure, ErrCodeTLSFailure, ErrCodeFetchTimeout:
		return true
	}
	return false
}
