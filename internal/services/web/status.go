package web

import (
	"net/http"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errorHTTPStatus picks the response status for a failed request. Domain
// configuration and serialization failures are server faults.
func errorHTTPStatus(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeActionValidation:
		return http.StatusBadRequest
	case apperrors.CodeActionNetwork:
		return http.StatusServiceUnavailable
	case apperrors.CodeActionTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeUnknown:
		return grpcErrorHTTPStatus(err, http.StatusInternalServerError)
	default:
		return http.StatusInternalServerError
	}
}

// grpcErrorHTTPStatus maps common gRPC status codes to HTTP status codes.
// It returns fallback when err is not a gRPC status or is unmapped.
func grpcErrorHTTPStatus(err error, fallback int) int {
	st, ok := status.FromError(err)
	if !ok {
		return fallback
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return fallback
	}
}
