package directory

import "errors"

var (
	// ErrInvalidName is returned for names that are empty, too long or
	// contain a NUL byte.
	ErrInvalidName = errors.New("invalid file name")

	// ErrExists is returned when inserting a name that is already present.
	ErrExists = errors.New("name already exists")

	// ErrFull is returned when every slot of the directory is taken.
	ErrFull = errors.New("directory is full")

	// ErrNotFound is returned for empty slots and the root slot on removal.
	ErrNotFound = errors.New("no such directory entry")
)
