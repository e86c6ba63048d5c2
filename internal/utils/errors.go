package utils

import (
	"fmt"

	"github.com/jthake/odrv/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Auth errors (10-19)
	ExitAuthRequired = 10
	ExitAuthExpired  = 11
	ExitAuthInvalid  = 12
	// Item operation errors (20-29)
	ExitResourceNotFound = 20
	ExitPermissionDenied = 21
	ExitQuotaExceeded    = 22
	// Network errors (30-39)
	ExitNetworkError      = 30
	ExitTimeout           = 31
	ExitRateLimited       = 32
	ExitUnexpectedStatus  = 33
	ExitMalformedResponse = 34
	// Validation errors (40-49)
	ExitInvalidArgument = 40
	ExitResourceLimit   = 41
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeAuthRequired      = "AUTH_REQUIRED"
	ErrCodeAuthExpired       = "AUTH_EXPIRED"
	ErrCodeAuthClientMissing = "AUTH_CLIENT_MISSING"
	ErrCodeResourceNotFound  = "RESOURCE_NOT_FOUND"
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeNetworkError      = "NETWORK_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeUnexpectedStatus  = "UNEXPECTED_STATUS"
	ErrCodeMalformedResponse = "MALFORMED_RESPONSE"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeResourceLimit     = "RESOURCE_LIMIT"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeUnknown           = "UNKNOWN"
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *CLIErrorBuilder) WithHTTPStatus(status int) *CLIErrorBuilder {
	b.err.HTTPStatus = status
	return b
}

func (b *CLIErrorBuilder) WithGraphCode(code string) *CLIErrorBuilder {
	b.err.GraphCode = code
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeAuthRequired:      ExitAuthRequired,
		ErrCodeAuthExpired:       ExitAuthExpired,
		ErrCodeAuthClientMissing: ExitAuthRequired,
		ErrCodeResourceNotFound:  ExitResourceNotFound,
		ErrCodePermissionDenied:  ExitPermissionDenied,
		ErrCodeQuotaExceeded:     ExitQuotaExceeded,
		ErrCodeNetworkError:      ExitNetworkError,
		ErrCodeTimeout:           ExitTimeout,
		ErrCodeRateLimited:       ExitRateLimited,
		ErrCodeUnexpectedStatus:  ExitUnexpectedStatus,
		ErrCodeMalformedResponse: ExitMalformedResponse,
		ErrCodeInvalidArgument:   ExitInvalidArgument,
		ErrCodeResourceLimit:     ExitResourceLimit,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}
