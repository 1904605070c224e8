package filesystem

import (
	"errors"
	"fmt"

	"github.com/desertwitch/blockfs/internal/directory"
	"github.com/desertwitch/blockfs/internal/filetable"
	"github.com/desertwitch/blockfs/internal/inode"
	"github.com/desertwitch/blockfs/internal/superblock"
)

var (
	// ErrInvalidArgument is returned for unusable arguments: non-positive
	// file counts, empty buffers, invalid names and unknown whence values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidMode is returned for unknown open modes.
	ErrInvalidMode = fmt.Errorf("%w: invalid mode", ErrInvalidArgument)

	// ErrNotFound is returned when a name does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrInvalidHandle is returned for handles that are unknown or closed.
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrPermissionDenied is returned when the mode of a handle does not
	// permit the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOutOfSpace is returned when no free block is left.
	ErrOutOfSpace = errors.New("out of space")

	// ErrExists is returned when a file to be created already exists.
	ErrExists = errors.New("file already exists")

	// ErrBusy is returned when an operation conflicts with open files.
	ErrBusy = errors.New("file system busy")

	// ErrFileTooLarge is returned when a write would exceed the maximum
	// file size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoInodes is returned when every inode is taken.
	ErrNoInodes = errors.New("no free inodes")

	// ErrCorrupted is returned when the on-disk structures are inconsistent.
	ErrCorrupted = errors.New("file system corrupted")
)

// classify wraps an error of a lower package with the matching error of this
// package, so that both match with [errors.Is].
func classify(err error) error {
	var kind error

	switch {
	case err == nil:
		return nil
	case errors.Is(err, superblock.ErrOutOfSpace):
		kind = ErrOutOfSpace
	case errors.Is(err, inode.ErrFileTooLarge):
		kind = ErrFileTooLarge
	case errors.Is(err, directory.ErrFull):
		kind = ErrNoInodes
	case errors.Is(err, directory.ErrInvalidName), errors.Is(err, superblock.ErrInvalidArgument):
		kind = ErrInvalidArgument
	case errors.Is(err, filetable.ErrInvalidMode):
		kind = ErrInvalidMode
	case errors.Is(err, filetable.ErrInvalidHandle):
		kind = ErrInvalidHandle
	case errors.Is(err, superblock.ErrCorrupted),
		errors.Is(err, superblock.ErrDoubleFree),
		errors.Is(err, superblock.ErrOutOfRange),
		errors.Is(err, inode.ErrMalformed),
		errors.Is(err, inode.ErrNotSequential),
		errors.Is(err, inode.ErrInvalidInumber):
		kind = ErrCorrupted
	default:
		return err
	}

	return fmt.Errorf("%w: %w", kind, err)
}
