package device

import "errors"

var (
	// ErrOutOfRange is returned when a block number lies outside the device.
	ErrOutOfRange = errors.New("block number out of range")

	// ErrBadBuffer is returned when a buffer is not exactly one block long.
	ErrBadBuffer = errors.New("buffer is not block sized")

	// ErrLocked is returned when an image file is already in use by another
	// device instance or process.
	ErrLocked = errors.New("image is locked by another user")

	// ErrBadImage is returned for image files whose size is not a positive
	// multiple of [BlockSize].
	ErrBadImage = errors.New("image size is not a multiple of the block size")

	// ErrClosed is returned for operations on a closed device.
	ErrClosed = errors.New("device is closed")
)
