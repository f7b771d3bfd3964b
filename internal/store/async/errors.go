package async

import (
	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
)

// Failed reports a generic action failure.
func Failed(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeActionFailed, message, cause)
}

// Network reports a failed external call.
func Network(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeActionNetwork, message, cause)
}

// Validation reports rejected input. Validation failures are never retried.
func Validation(message string, metadata map[string]string) error {
	return apperrors.WithMetadata(apperrors.CodeActionValidation, message, metadata)
}

// Cancelled wraps a context cancellation observed by the executor.
func Cancelled(cause error) error {
	return apperrors.Wrap(apperrors.CodeActionCancelled, "action cancelled", cause)
}

// Timeout wraps a deadline set by WithTimeout.
func Timeout(cause error) error {
	return apperrors.Wrap(apperrors.CodeActionTimeout, "action timed out", cause)
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeActionValidation, apperrors.CodeActionCancelled:
		return false
	}
	return !IsContextError(err)
}
