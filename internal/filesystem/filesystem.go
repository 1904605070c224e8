// Package filesystem implements the file system engine: named files with
// random-access reads and writes, growth on demand and a flat directory,
// layered over a [device.Device].
//
// A [FileSystem] is safe for concurrent use. Operations on distinct files
// do not block each other beyond short critical sections on the shared
// metadata. Read, write, seek and size on one file hold that file's entry
// lock for their whole duration. Block allocation, block release, directory
// changes and format hold the engine lock. The entry lock is always taken
// before the engine lock.
package filesystem

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/desertwitch/blockfs/internal/device"
	"github.com/desertwitch/blockfs/internal/directory"
	"github.com/desertwitch/blockfs/internal/filetable"
	"github.com/desertwitch/blockfs/internal/inode"
	"github.com/desertwitch/blockfs/internal/superblock"
)

// Handle identifies an open file.
type Handle = filetable.Handle

// Mode is the access mode of an open file.
type Mode = filetable.Mode

// Modes of [FileSystem.Open].
const (
	Read      = filetable.Read
	Write     = filetable.Write
	ReadWrite = filetable.ReadWrite
	Append    = filetable.Append
)

// ParseMode maps a mode name ("r", "w", "w+", "a" or "READ", "WRITE",
// "READ_WRITE", "APPEND") to a [Mode].
func ParseMode(s string) (Mode, error) {
	m, err := filetable.ParseMode(s)
	if err != nil {
		return 0, classify(err)
	}

	return m, nil
}

// FileSystem is a mounted file system.
type FileSystem struct {
	sync.Mutex // engine lock
	dev        device.Device
	sb         *superblock.Superblock
	inodes     *inode.Store
	dir        *directory.Directory
	root       inode.Inode
	table      *filetable.Table
}

type options struct {
	inodes int
}

// Option configures [Mount].
type Option func(*options)

// WithInodes sets the inode count used when an unformatted device is
// formatted at mount. The default is [superblock.DefaultInodes].
func WithInodes(n int) Option {
	return func(o *options) {
		o.inodes = n
	}
}

// Mount mounts the file system of a device. An unformatted device is
// formatted first. Mounting reads the superblock, reads the root inode by
// its inumber, restores the directory from the root file and reclaims the
// inodes of deletions that were never completed.
func Mount(dev device.Device, opts ...Option) (*FileSystem, error) {
	o := options{inodes: superblock.DefaultInodes}
	for _, opt := range opts {
		opt(&o)
	}

	fs := &FileSystem{
		dev:   dev,
		table: filetable.NewTable(),
	}

	sb, err := superblock.Load(dev)
	if errors.Is(err, superblock.ErrUnformatted) {
		slog.Debug("Formatting unformatted device", "blocks", dev.Blocks(), "inodes", o.inodes)

		fs.sb = superblock.New(dev)
		if err := fs.format(o.inodes); err != nil {
			return nil, fmt.Errorf("(filesystem-mount) %w", err)
		}

		return fs, nil
	} else if err != nil {
		return nil, fmt.Errorf("(filesystem-mount) %w", classify(err))
	}
	fs.sb = sb

	if err := fs.bootstrap(); err != nil {
		return nil, fmt.Errorf("(filesystem-mount) %w", err)
	}

	slog.Debug("Mounted file system",
		"blocks", sb.TotalBlocks(),
		"inodes", sb.TotalInodes(),
		"free", sb.FreeCount(),
		"files", fs.dir.Len(),
	)

	return fs, nil
}

// bootstrap restores the in-memory state of a loaded superblock.
func (fs *FileSystem) bootstrap() error {
	fs.inodes = inode.NewStore(fs.dev, fs.sb.TotalInodes())
	fs.dir = directory.New(fs.sb.TotalInodes())

	root, err := fs.inodes.Get(directory.RootInumber)
	if err != nil {
		return classify(err)
	}
	if root.Flag != inode.Used {
		return fmt.Errorf("%w: root inode is %s", ErrCorrupted, root.Flag)
	}
	fs.root = root

	body := make([]byte, root.Length)
	if _, err := fs.readAt(&fs.root, 0, body); err != nil {
		return classify(err)
	}

	for _, i := range fs.dir.Decode(body) {
		slog.Warn("Dropped malformed directory slot", "inumber", i)
	}

	return fs.reclaim()
}

// reclaim completes deletions left in the [inode.Deleting] state and drops
// names of inodes that are not in use.
func (fs *FileSystem) reclaim() error {
	changed := false

	for i := directory.RootInumber + 1; i < fs.inodes.Count(); i++ {
		in, err := fs.inodes.Get(i)
		if err != nil {
			slog.Warn("Skipped unreadable inode", "inumber", i, "err", err)

			continue
		}

		name := fs.dir.Name(i)

		switch in.Flag {
		case inode.Deleting:
			slog.Warn("Reclaiming incompletely deleted file", "inumber", i, "file", name)

			if err := fs.release(i, &in); err != nil {
				return err
			}
			if name != "" {
				_ = fs.dir.Remove(i)
				changed = true
			}

		case inode.Unused:
			if name != "" {
				slog.Warn("Dropped name of unused inode", "inumber", i, "file", name)

				_ = fs.dir.Remove(i)
				changed = true
			}

		case inode.Used:
		}
	}

	if changed {
		return fs.persistDirectory()
	}

	return nil
}

// Format formats the device for maxFiles inodes, the root directory
// included. It fails while any file is open.
func (fs *FileSystem) Format(maxFiles int) error {
	if maxFiles <= 0 {
		return fmt.Errorf("(filesystem-format) %w: file count %d", ErrInvalidArgument, maxFiles)
	}

	fs.Lock()
	defer fs.Unlock()

	if n := fs.table.Len(); n > 0 {
		return fmt.Errorf("(filesystem-format) %w: %w: %d handles open", ErrInvalidArgument, ErrBusy, n)
	}

	if err := fs.format(maxFiles); err != nil {
		return fmt.Errorf("(filesystem-format) %w", err)
	}

	slog.Debug("Formatted file system", "blocks", fs.sb.TotalBlocks(), "inodes", maxFiles)

	return nil
}

// format writes a new superblock and an empty root directory. The engine
// lock must be held.
func (fs *FileSystem) format(maxFiles int) error {
	need := rootBlocks(maxFiles)
	room := fs.dev.Blocks() - superblock.InodeRegionStart - superblock.InodeBlocks(maxFiles)

	if need > room || need > inode.MaxBlocks {
		return fmt.Errorf("%w: directory of %d files needs %d blocks", ErrInvalidArgument, maxFiles, need)
	}

	if err := fs.sb.Format(maxFiles); err != nil {
		return classify(err)
	}

	fs.inodes = inode.NewStore(fs.dev, maxFiles)
	fs.dir = directory.New(maxFiles)
	fs.root = inode.Inode{Flag: inode.Used}

	return fs.persistDirectory()
}

// rootBlocks returns the number of blocks the directory of maxFiles slots
// occupies, the indirect block included.
func rootBlocks(maxFiles int) int {
	n := (directory.EncodedSize(maxFiles) + device.BlockSize - 1) / device.BlockSize
	if n > inode.DirectCount {
		n++
	}

	return n
}

// persistDirectory writes the directory into the root file. The engine lock
// must be held.
func (fs *FileSystem) persistDirectory() error {
	if _, err := fs.writeAt(&fs.root, 0, fs.dir.Encode(), fs.sb.Allocate); err != nil {
		_ = fs.inodes.Put(directory.RootInumber, &fs.root)

		return classify(err)
	}

	if err := fs.inodes.Put(directory.RootInumber, &fs.root); err != nil {
		return classify(err)
	}

	return nil
}

// allocate allocates a data block under the engine lock.
func (fs *FileSystem) allocate() (int, error) {
	fs.Lock()
	defer fs.Unlock()

	return fs.sb.Allocate()
}

// release frees every block of inode i and marks it unused. The inode is
// marked [inode.Deleting] while its blocks are freed. The engine lock must
// be held.
func (fs *FileSystem) release(i int, in *inode.Inode) error {
	in.Flag = inode.Deleting
	if err := fs.inodes.Put(i, in); err != nil {
		return classify(err)
	}

	if err := in.Release(fs.sb.Free, fs.dev); err != nil {
		_ = fs.inodes.Put(i, in)

		return classify(err)
	}

	if err := fs.inodes.Put(i, in); err != nil {
		return classify(err)
	}

	return nil
}

// remove deletes the file of inode i: its blocks, its inode and its name.
// The engine lock must be held.
func (fs *FileSystem) remove(i int, in *inode.Inode) error {
	if err := fs.release(i, in); err != nil {
		return err
	}

	if err := fs.dir.Remove(i); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupted, err)
	}

	return fs.persistDirectory()
}

// Sync flushes the device if it supports it.
func (fs *FileSystem) Sync() error {
	s, ok := fs.dev.(device.Syncer)
	if !ok {
		return nil
	}

	if err := s.Sync(); err != nil {
		return fmt.Errorf("(filesystem-sync) %w", err)
	}

	return nil
}
