// Package errors provides the structured error taxonomy for reviewchain.
// Every failure surfaced to a caller carries a machine-readable code,
// a human message, optional details and a suggestion the user can act on.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"maps"
	"sort"
)

// Exit codes returned by the CLI.
const (
	ExitSuccess   = 0 // Successful execution
	ExitGeneral   = 1 // General/unknown error
	ExitInput     = 2 // Invalid input
	ExitWallet    = 3 // Wallet not connected or on the wrong network
	ExitNotFound  = 4 // Resource not found
	ExitFunds     = 5 // Insufficient gas funds
	ExitCancelled = 6 // User rejected or cancelled the action
)

// ReviewError is the structured error type for reviewchain.
type ReviewError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *ReviewError) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ReviewError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ReviewError. Two errors match when their codes match.
func (e *ReviewError) Is(target error) bool {
	var t *ReviewError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &ReviewError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrNotFound = &ReviewError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	// Input errors.
	ErrValidationFailed = &ReviewError{
		Code:     "VALIDATION_FAILED",
		Message:  "review input is invalid",
		ExitCode: ExitInput,
	}

	ErrFileValidation = &ReviewError{
		Code:     "FILE_VALIDATION_FAILED",
		Message:  "evidence file rejected",
		ExitCode: ExitInput,
	}

	ErrSubmissionInFlight = &ReviewError{
		Code:       "SUBMISSION_IN_FLIGHT",
		Message:    "a submission for this reviewer is already in progress",
		Suggestion: "wait for the current submission to finish before submitting again",
		ExitCode:   ExitInput,
	}

	// Wallet errors.
	ErrWalletNotConnected = &ReviewError{
		Code:       "WALLET_NOT_CONNECTED",
		Message:    "wallet is not connected",
		Suggestion: "connect a wallet and approve the account request",
		ExitCode:   ExitWallet,
	}

	ErrWrongNetwork = &ReviewError{
		Code:     "WRONG_NETWORK",
		Message:  "wallet is connected to the wrong network",
		ExitCode: ExitWallet,
	}

	ErrUserRejected = &ReviewError{
		Code:     "USER_REJECTED",
		Message:  "request was rejected in the wallet",
		ExitCode: ExitCancelled,
	}

	ErrCancelled = &ReviewError{
		Code:     "CANCELLED",
		Message:  "submission cancelled before the transaction was sent",
		ExitCode: ExitCancelled,
	}

	// Chain errors.
	ErrContractNotDeployed = &ReviewError{
		Code:     "CONTRACT_NOT_DEPLOYED",
		Message:  "review contracts are not deployed on this network",
		ExitCode: ExitWallet,
	}

	ErrInsufficientGasFunds = &ReviewError{
		Code:     "INSUFFICIENT_GAS_FUNDS",
		Message:  "account has no funds to pay for gas",
		ExitCode: ExitFunds,
	}

	ErrContractRejected = &ReviewError{
		Code:     "CONTRACT_REJECTED",
		Message:  "contract rejected the transaction",
		ExitCode: ExitGeneral,
	}

	ErrGasCeilingExceeded = &ReviewError{
		Code:     "GAS_CEILING_EXCEEDED",
		Message:  "estimated gas exceeds the configured ceiling",
		ExitCode: ExitGeneral,
	}

	ErrConfirmationTimeout = &ReviewError{
		Code:       "CONFIRMATION_TIMEOUT",
		Message:    "transaction was sent but not confirmed in time",
		Suggestion: "run 'reviewchain tx reconcile' later to settle its status",
		ExitCode:   ExitGeneral,
	}

	ErrNetworkError = &ReviewError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitGeneral,
	}

	ErrUnknownNetwork = &ReviewError{
		Code:     "UNKNOWN_NETWORK",
		Message:  "unknown network",
		ExitCode: ExitInput,
	}

	// Storage errors.
	ErrUploadFailed = &ReviewError{
		Code:     "UPLOAD_FAILED",
		Message:  "evidence upload failed",
		ExitCode: ExitGeneral,
	}

	ErrPersistenceFailed = &ReviewError{
		Code:     "PERSISTENCE_FAILED",
		Message:  "review was recorded on-chain but could not be saved locally",
		ExitCode: ExitGeneral,
	}

	ErrStatusConflict = &ReviewError{
		Code:     "STATUS_CONFLICT",
		Message:  "transaction status already settled",
		ExitCode: ExitInput,
	}

	// Config errors.
	ErrConfigNotFound = &ReviewError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &ReviewError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new ReviewError with the given code and message.
func New(code, message string) *ReviewError {
	return &ReviewError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Newf derives an error from a sentinel, keeping its code and exit code
// and replacing the message.
func Newf(sentinel *ReviewError, format string, args ...any) *ReviewError {
	return &ReviewError{
		Code:       sentinel.Code,
		Message:    fmt.Sprintf(format, args...),
		Suggestion: sentinel.Suggestion,
		ExitCode:   sentinel.ExitCode,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var re *ReviewError
	if errors.As(err, &re) {
		return &ReviewError{
			Code:       re.Code,
			Message:    fmt.Sprintf("%s: %s", msg, re.Message),
			Details:    re.Details,
			Suggestion: re.Suggestion,
			Cause:      re.Cause,
			ExitCode:   re.ExitCode,
		}
	}

	return &ReviewError{
		Code:     ErrGeneral.Code,
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause attaches an underlying cause to a taxonomy error.
func WithCause(sentinel *ReviewError, cause error) error {
	out := *sentinel
	out.Details = maps.Clone(sentinel.Details)
	out.Cause = cause
	return &out
}

// WithDetails merges details into an error. Existing keys are overwritten.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var re *ReviewError
	if errors.As(err, &re) {
		merged := make(map[string]string, len(re.Details)+len(details))
		maps.Copy(merged, re.Details)
		maps.Copy(merged, details)
		return &ReviewError{
			Code:       re.Code,
			Message:    re.Message,
			Details:    merged,
			Suggestion: re.Suggestion,
			Cause:      re.Cause,
			ExitCode:   re.ExitCode,
		}
	}

	return &ReviewError{
		Code:     ErrGeneral.Code,
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var re *ReviewError
	if errors.As(err, &re) {
		return &ReviewError{
			Code:       re.Code,
			Message:    re.Message,
			Details:    re.Details,
			Suggestion: suggestion,
			Cause:      re.Cause,
			ExitCode:   re.ExitCode,
		}
	}

	return &ReviewError{
		Code:       ErrGeneral.Code,
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var re *ReviewError
	if errors.As(err, &re) {
		return re.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var re *ReviewError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrGeneral.Code
}

// Detail returns a single detail value, or "" when absent.
func Detail(err error, key string) string {
	var re *ReviewError
	if errors.As(err, &re) {
		return re.Details[key]
	}
	return ""
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
