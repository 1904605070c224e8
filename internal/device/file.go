package device

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

type osProvider interface {
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
}

type unixProvider interface {
	Flock(fd int, how int) error
	Fsync(fd int) error
}

// File is a [Device] backed by an image file on the host. The image is
// locked exclusively for as long as the [File] is open.
type File struct {
	f       *os.File
	blocks  int
	unixOps unixProvider
	closed  atomic.Bool
}

var (
	_ Device = (*File)(nil)
	_ Syncer = (*File)(nil)
)

// OpenFile opens the image at path, creating it with the given number of
// blocks if it does not exist yet (or is empty). For existing images the
// number of blocks is derived from the image size and blocks is ignored.
func OpenFile(path string, blocks int, osOps osProvider, unixOps unixProvider) (*File, error) {
	f, err := osOps.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644) //nolint:mnd
	if err != nil {
		return nil, fmt.Errorf("(device-file) failed to open image: %w", err)
	}

	if err := unixOps.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("(device-file) %w: %s", ErrLocked, path)
		}

		return nil, fmt.Errorf("(device-file) failed to lock image: %w", err)
	}

	size, err := imageSize(f, blocks)
	if err != nil {
		_ = unixOps.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()

		return nil, fmt.Errorf("(device-file) %w", err)
	}

	if actual := int(size / BlockSize); blocks > 0 && actual != blocks {
		slog.Debug("Image size overrides requested block count",
			"image", path,
			"requested", blocks,
			"actual", actual,
		)
	}

	return &File{
		f:       f,
		blocks:  int(size / BlockSize),
		unixOps: unixOps,
	}, nil
}

// imageSize returns the size of an image, growing empty images to hold the
// requested number of blocks.
func imageSize(f *os.File, blocks int) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat image: %w", err)
	}

	size := info.Size()

	if size == 0 {
		if blocks <= 0 {
			return 0, fmt.Errorf("%w: empty image and no block count", ErrBadImage)
		}

		size = int64(blocks) * BlockSize
		if err := f.Truncate(size); err != nil {
			return 0, fmt.Errorf("failed to size image: %w", err)
		}
	}

	if size%BlockSize != 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrBadImage, size)
	}

	return size, nil
}

// Blocks returns the number of blocks of the image.
func (d *File) Blocks() int {
	return d.blocks
}

// ReadBlock reads block n of the image into buf.
func (d *File) ReadBlock(n int, buf []byte) error {
	if d.closed.Load() {
		return fmt.Errorf("(device-file) %w", ErrClosed)
	}

	if err := checkAccess(n, d.blocks, buf); err != nil {
		return fmt.Errorf("(device-file) %w", err)
	}

	if _, err := d.f.ReadAt(buf, int64(n)*BlockSize); err != nil {
		return fmt.Errorf("(device-file) failed to read block %d: %w", n, err)
	}

	return nil
}

// WriteBlock writes buf to block n of the image.
func (d *File) WriteBlock(n int, buf []byte) error {
	if d.closed.Load() {
		return fmt.Errorf("(device-file) %w", ErrClosed)
	}

	if err := checkAccess(n, d.blocks, buf); err != nil {
		return fmt.Errorf("(device-file) %w", err)
	}

	if _, err := d.f.WriteAt(buf, int64(n)*BlockSize); err != nil {
		return fmt.Errorf("(device-file) failed to write block %d: %w", n, err)
	}

	return nil
}

// Sync flushes the image to stable storage.
func (d *File) Sync() error {
	if d.closed.Load() {
		return fmt.Errorf("(device-file) %w", ErrClosed)
	}

	if err := d.unixOps.Fsync(int(d.f.Fd())); err != nil {
		return fmt.Errorf("(device-file) failed to sync image: %w", err)
	}

	return nil
}

// Close unlocks and closes the image. Closing twice returns [ErrClosed].
func (d *File) Close() error {
	if d.closed.Swap(true) {
		return fmt.Errorf("(device-file) %w", ErrClosed)
	}

	if err := d.unixOps.Flock(int(d.f.Fd()), unix.LOCK_UN); err != nil {
		d.f.Close()

		return fmt.Errorf("(device-file) failed to unlock image: %w", err)
	}

	if err := d.f.Close(); err != nil {
		return fmt.Errorf("(device-file) failed to close image: %w", err)
	}

	return nil
}
