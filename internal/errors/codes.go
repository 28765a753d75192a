// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Platform lifecycle errors
	CodePlatformAlreadyExists     Code = "PLATFORM_ALREADY_EXISTS"
	CodePlatformNotFound          Code = "PLATFORM_NOT_FOUND"
	CodePlatformKeyDuplicate      Code = "PLATFORM_KEY_DUPLICATE"
	CodePlatformVersionConflict   Code = "PLATFORM_VERSION_CONFLICT"
	CodePlatformNotDeleted        Code = "PLATFORM_NOT_DELETED"
	CodePlatformModulePathUnknown Code = "PLATFORM_MODULE_PATH_UNKNOWN"

	// Property errors
	CodePropertyValidationFailed Code = "PROPERTY_VALIDATION_FAILED"
	CodePropertyRequiredMissing  Code = "PROPERTY_REQUIRED_MISSING"
	CodePropertyReferenceCycle   Code = "PROPERTY_REFERENCE_CYCLE"

	// Catalog errors
	CodeModuleNotFound Code = "MODULE_NOT_FOUND"

	// Query errors
	CodeApplicationNotFound Code = "APPLICATION_NOT_FOUND"
	CodeInvalidFilter       Code = "INVALID_FILTER"
	CodeInvalidPageToken    Code = "INVALID_PAGE_TOKEN"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeEventTypeUnknown Code = "EVENT_TYPE_UNKNOWN"
	CodeEventSequenceGap Code = "EVENT_SEQUENCE_GAP"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodePropertyValidationFailed,
		CodePropertyRequiredMissing,
		CodePropertyReferenceCycle,
		CodeInvalidFilter,
		CodeInvalidPageToken:
		return codes.InvalidArgument

	// AlreadyExists - the identity or natural key is taken
	case CodePlatformAlreadyExists,
		CodePlatformKeyDuplicate:
		return codes.AlreadyExists

	// FailedPrecondition - state doesn't allow the operation
	case CodePlatformVersionConflict,
		CodePlatformNotDeleted:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodePlatformNotFound,
		CodePlatformModulePathUnknown,
		CodeModuleNotFound,
		CodeApplicationNotFound:
		return codes.NotFound

	// DataLoss - the journal itself is damaged
	case CodeEventSequenceGap:
		return codes.DataLoss

	default:
		return codes.Internal
	}
}
