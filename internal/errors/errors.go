// Package errors provides standardized error types for the certd daemon.
//
// Every failure that crosses a package boundary is a *CertError carrying an
// ErrorCode, so callers can branch on the category without string matching.
//
// # Error Categories
//
// The codes follow the daemon's failure taxonomy:
//
//   - CONFIG: fatal at startup (malformed domain list, unwritable paths)
//   - ACME_*: retryable per the scheduler's backoff policy
//   - INSTALL: filesystem write/rename failure, retried on the next tick
//   - RELOAD: the certificate is installed and valid, only the web server's
//     live configuration lags; reported but never retried at renewal cadence
//   - STATE: state file read/write failure
//
// # Usage
//
// Creating errors:
//
//	return errors.Config("renewal_window_days must be positive")
//	return errors.Acme(errors.CodeAcmeRateLimited, set, err)
//	return errors.Wrap(errors.CodeInstall, "stage certificate", err)
//
// Checking errors:
//
//	if errors.CodeOf(err) == errors.CodeConfig { os.Exit(2) }
//	if errors.IsAcme(err) { /* schedule a retry */ }
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors for programmatic handling.
type ErrorCode string

// Error codes for the daemon's failure taxonomy.
const (
	CodeConfig          ErrorCode = "CONFIG"            // Configuration error, fatal at startup
	CodeAcmeValidation  ErrorCode = "ACME_VALIDATION"   // Domain validation failed at the CA
	CodeAcmeRateLimited ErrorCode = "ACME_RATE_LIMITED" // CA rate limit hit
	CodeAcmeNetwork     ErrorCode = "ACME_NETWORK"      // Network failure or attempt timeout
	CodeAcmeRejected    ErrorCode = "ACME_REJECTED"     // CA rejected the order outright
	CodeInstall         ErrorCode = "INSTALL"           // Certificate file staging/rename failure
	CodeReload          ErrorCode = "RELOAD"            // Web server reload signal failure
	CodeState           ErrorCode = "STATE"             // State file persistence failure
	CodeNotFound        ErrorCode = "NOT_FOUND"         // Domain set not managed
	CodeAlreadyExists   ErrorCode = "ALREADY_EXISTS"    // Domain set already managed
	CodeValidation      ErrorCode = "VALIDATION"        // Input validation failed
	CodeInternal        ErrorCode = "INTERNAL"          // Internal/unexpected error
)

// CertError is a structured error with context about the failed operation.
type CertError struct {
	Code    ErrorCode // Error category
	Message string    // Human-readable message
	Set     string    // Domain set key (if applicable)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *CertError) Error() string {
	switch {
	case e.Set != "" && e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Set, e.Message, e.Err)
	case e.Set != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Set, e.Err)
	case e.Set != "":
		return fmt.Sprintf("%s: %s", e.Set, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

// Unwrap returns the underlying error for error chain traversal.
func (e *CertError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error. Comparison is by code.
func (e *CertError) Is(target error) bool {
	t, ok := target.(*CertError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinel errors for common scenarios. Use with errors.Is().
var (
	// ErrSetNotFound indicates the requested domain set is not managed.
	ErrSetNotFound = &CertError{Code: CodeNotFound, Message: "domain set not found"}

	// ErrSetExists indicates the domain set is already managed.
	ErrSetExists = &CertError{Code: CodeAlreadyExists, Message: "domain set already exists"}

	// ErrInvalidDomain indicates a domain name failed validation.
	ErrInvalidDomain = &CertError{Code: CodeValidation, Message: "invalid domain"}

	// ErrConfigInvalid indicates the configuration is invalid or corrupt.
	ErrConfigInvalid = &CertError{Code: CodeConfig, Message: "invalid configuration"}
)

// Config creates a fatal configuration error.
func Config(msg string) error {
	return &CertError{Code: CodeConfig, Message: msg}
}

// Configf creates a fatal configuration error with formatting.
func Configf(format string, args ...interface{}) error {
	return &CertError{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}

// Acme creates an ACME error for a domain set with one of the CodeAcme*
// codes. Any other code is coerced to CodeAcmeNetwork.
func Acme(code ErrorCode, set string, err error) error {
	if !isAcmeCode(code) {
		code = CodeAcmeNetwork
	}
	return &CertError{Code: code, Set: set, Err: err}
}

// Validation creates an input validation error.
func Validation(msg string) error {
	return &CertError{Code: CodeValidation, Message: msg}
}

// NotFound creates an error for a domain set that is not managed.
func NotFound(set string) error {
	return &CertError{Code: CodeNotFound, Message: "domain set not found", Set: set}
}

// AlreadyExists creates an error for a domain set that is already managed.
func AlreadyExists(set string) error {
	return &CertError{Code: CodeAlreadyExists, Message: "domain set already exists", Set: set}
}

// Wrap creates an error with the specified code, message, and underlying error.
func Wrap(code ErrorCode, msg string, err error) error {
	return &CertError{Code: code, Message: msg, Err: err}
}

// WrapSet creates an error with domain set context and underlying error.
func WrapSet(code ErrorCode, set string, msg string, err error) error {
	return &CertError{Code: code, Set: set, Message: msg, Err: err}
}

// CodeOf returns the code of the first CertError in err's chain, or
// CodeInternal when the chain carries none.
func CodeOf(err error) ErrorCode {
	var ce *CertError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// IsAcme reports whether err is categorized as any ACME failure kind.
func IsAcme(err error) bool {
	return isAcmeCode(CodeOf(err))
}

func isAcmeCode(code ErrorCode) bool {
	switch code {
	case CodeAcmeValidation, CodeAcmeRateLimited, CodeAcmeNetwork, CodeAcmeRejected:
		return true
	}
	return false
}

// Is reports whether any error in err's chain matches target.
// This is a re-export of errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// This is a re-export of errors.As for convenience.
var As = errors.As
