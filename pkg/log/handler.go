package log

import (
	"github.com/cockroachdb/errors"
)

const (
	// ErrAttrKey is the attribute key under which error values are logged.
	ErrAttrKey = "error"

	// StacktraceAttrKey is the attribute key for extracted stack traces.
	StacktraceAttrKey = "stacktrace"
)

// extractStacktrace pulls the first safe detail (the stack trace) out of a
// cockroachdb/errors error. Plain errors yield an empty string.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
