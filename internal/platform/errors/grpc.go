package errors

import (
	stderrors "errors"

	"github.com/louisbranch/statehouse/internal/platform/errors/i18n"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultLocale is the default locale for error messages.
const DefaultLocale = i18n.BaseLocale

// HandleError converts domain errors to gRPC status for client responses.
// The user-facing message is formatted from the catalog for locale, falling
// back to DefaultLocale.
func HandleError(err error, locale string) error {
	if err == nil {
		return nil
	}
	if locale == "" {
		locale = DefaultLocale
	}

	var appErr *Error
	if stderrors.As(err, &appErr) {
		catalog := i18n.GetCatalog(locale)
		userMsg := catalog.Format(string(appErr.Code), appErr.Metadata)
		return appErr.ToGRPCStatus(catalog.Locale(), userMsg)
	}

	return status.Error(codes.Internal, "an unexpected error occurred")
}

// LocalizedMessage returns the user-facing message for err in locale.
// Errors outside the domain render as CodeUnknown.
func LocalizedMessage(err error, locale string) string {
	return i18n.Localize(locale, string(CodeOf(err)), MetadataOf(err))
}
