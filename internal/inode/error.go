package inode

import "errors"

var (
	// ErrFileTooLarge is returned for offsets beyond the addressable size of
	// an inode.
	ErrFileTooLarge = errors.New("offset exceeds maximum file size")

	// ErrNotSequential is returned when a block is grown out of address
	// order, which would leave a gap in the pointers.
	ErrNotSequential = errors.New("block growth is not sequential")

	// ErrMalformed is returned when an on-disk inode record cannot be decoded.
	ErrMalformed = errors.New("malformed inode record")

	// ErrInvalidInumber is returned for inumbers outside of the inode region.
	ErrInvalidInumber = errors.New("inumber out of range")
)
