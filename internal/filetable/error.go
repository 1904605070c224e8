package filetable

import "errors"

var (
	// ErrInvalidMode is returned by [ParseMode] for unknown mode strings.
	ErrInvalidMode = errors.New("invalid open mode")

	// ErrInvalidHandle is returned for handles that were never issued or
	// have been released.
	ErrInvalidHandle = errors.New("invalid file handle")
)
