// Package device implements the block device adapters that the file system
// is layered over. A [Device] transfers whole blocks of [BlockSize] bytes,
// synchronously, addressed by block number.
package device

import "fmt"

// BlockSize is the size of every block in bytes.
const BlockSize = 512

// Device is a synchronous, fixed-size block device. Implementations must
// allow concurrent calls on distinct blocks.
type Device interface {
	ReadBlock(n int, buf []byte) error
	WriteBlock(n int, buf []byte) error
	Blocks() int
}

// Syncer is implemented by devices that can flush written blocks to stable
// storage.
type Syncer interface {
	Sync() error
}

// checkAccess validates a block number and buffer against a device.
func checkAccess(n int, blocks int, buf []byte) error {
	if n < 0 || n >= blocks {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, n, blocks)
	}

	if len(buf) != BlockSize {
		return fmt.Errorf("%w: got %d bytes", ErrBadBuffer, len(buf))
	}

	return nil
}
