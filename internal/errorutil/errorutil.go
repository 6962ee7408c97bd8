package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues.
var ErrDataIntegrity = errors.New("data integrity error")

var (
	// ErrUnreadableFile is returned when a path can't be opened or read.
	ErrUnreadableFile = errors.New("unreadable file")
	// ErrUnknownFormat is returned when no known debug file signature matches.
	ErrUnknownFormat = errors.New("unknown debug file format")
	// ErrFormatMismatch is returned when an explicitly requested format doesn't
	// match the content of the file.
	ErrFormatMismatch = errors.New("format mismatch")
	// ErrTruncatedFile is returned when a declared structure extends past the
	// end of the file.
	ErrTruncatedFile = errors.New("truncated file")
	// ErrMalformedHeader is returned when a header is present but can't be
	// decoded.
	ErrMalformedHeader = errors.New("malformed header")
	// ErrFileTooLarge is returned instead of buffering a file above the
	// configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// IsDataIntegrity reports whether err was caused by the content of a file
// rather than by the environment.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrDataIntegrity) ||
		errors.Is(err, ErrTruncatedFile) ||
		errors.Is(err, ErrMalformedHeader)
}
