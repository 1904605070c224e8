package superblock

import "errors"

var (
	// ErrInvalidArgument is returned for format requests that cannot produce
	// a usable layout on the device.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfSpace is returned when the free list is exhausted.
	ErrOutOfSpace = errors.New("out of space")

	// ErrOutOfRange is returned when a block outside of the data region is
	// handed back to the free list.
	ErrOutOfRange = errors.New("block is not a data block")

	// ErrDoubleFree is returned when a block that is already free is freed.
	ErrDoubleFree = errors.New("block is already free")

	// ErrUnformatted is returned when the header block does not describe a
	// file system on the device.
	ErrUnformatted = errors.New("device is not formatted")

	// ErrCorrupted is returned when the free list on the device is
	// inconsistent (a cycle, or a pointer outside of the data region).
	ErrCorrupted = errors.New("free list is corrupted")
)
