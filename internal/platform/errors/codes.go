// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeDuplicateKey     Code = "CONFIGURATION_DUPLICATE_KEY"
	CodeNotFound         Code = "CONFIGURATION_NOT_FOUND"
	CodeRegistrySealed   Code = "CONFIGURATION_SEALED"
	CodeTypeMismatch     Code = "CONFIGURATION_TYPE_MISMATCH"
	CodeNoRegistry       Code = "CONFIGURATION_NO_REGISTRY"
	CodeNotMounted       Code = "CONFIGURATION_NOT_MOUNTED"
	CodeInvalidIdentity  Code = "CONFIGURATION_INVALID_IDENTITY"
	CodeInvalidMode      Code = "CONFIGURATION_INVALID_MODE"
	CodeInvalidLifecycle Code = "CONFIGURATION_INVALID_LIFECYCLE"
	CodeMissingInitial   Code = "CONFIGURATION_MISSING_INITIAL"

	// Hydration errors
	CodeSerialization   Code = "SERIALIZATION_FAILED"
	CodeDeserialization Code = "DESERIALIZATION_FAILED"
	CodePayloadMissing  Code = "PAYLOAD_MISSING"

	// Store errors
	CodeMutationRejected Code = "MUTATION_REJECTED"

	// Action errors
	CodeActionFailed     Code = "ACTION_FAILED"
	CodeActionCancelled  Code = "ACTION_CANCELLED"
	CodeActionTimeout    Code = "ACTION_TIMEOUT"
	CodeActionNetwork    Code = "ACTION_NETWORK"
	CodeActionValidation Code = "ACTION_VALIDATION"
)

// Sentinels for errors.Is comparisons by code.
var (
	ErrDuplicateKey    = &Error{Code: CodeDuplicateKey}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrSerialization   = &Error{Code: CodeSerialization}
	ErrDeserialization = &Error{Code: CodeDeserialization}
	ErrPayloadMissing  = &Error{Code: CodePayloadMissing}
	ErrMutation        = &Error{Code: CodeMutationRejected}
)

// IsConfiguration reports whether the code belongs to the configuration family.
func (c Code) IsConfiguration() bool {
	switch c {
	case CodeDuplicateKey,
		CodeNotFound,
		CodeRegistrySealed,
		CodeTypeMismatch,
		CodeNoRegistry,
		CodeNotMounted,
		CodeInvalidIdentity,
		CodeInvalidMode,
		CodeInvalidLifecycle,
		CodeMissingInitial:
		return true
	}
	return false
}

// IsAction reports whether the code is an ActionError code.
func (c Code) IsAction() bool {
	switch c {
	case CodeActionFailed,
		CodeActionCancelled,
		CodeActionTimeout,
		CodeActionNetwork,
		CodeActionValidation:
		return true
	}
	return false
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidIdentity,
		CodeInvalidMode,
		CodeMissingInitial,
		CodeActionValidation,
		CodeDeserialization:
		return codes.InvalidArgument

	// FailedPrecondition - lifecycle doesn't allow operation
	case CodeRegistrySealed,
		CodeNotMounted,
		CodeInvalidLifecycle,
		CodeMutationRejected,
		CodeNoRegistry,
		CodeTypeMismatch:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodePayloadMissing:
		return codes.NotFound

	// AlreadyExists - unique identity constraint
	case CodeDuplicateKey:
		return codes.AlreadyExists

	case CodeActionCancelled:
		return codes.Canceled

	case CodeActionTimeout:
		return codes.DeadlineExceeded

	case CodeActionNetwork:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
