package transfer

import "errors"

var (
	// ErrExists is an error that occurs when the destination of a transfer
	// already exists. Transfers never overwrite existing files.
	ErrExists = errors.New("destination already exists")

	// ErrHashMismatch is an error that occurs when the checksums of source and
	// destination differ after a transfer.
	ErrHashMismatch = errors.New("hash mismatch")

	// ErrDuplicateName is an error that occurs when more than one job of a
	// queue targets the same file.
	ErrDuplicateName = errors.New("duplicate destination name")

	// ErrIncomplete is an error that occurs when some jobs of a queue failed.
	ErrIncomplete = errors.New("transfer incomplete")
)
