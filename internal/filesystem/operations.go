package filesystem

import (
	"fmt"
	"log/slog"

	"github.com/desertwitch/blockfs/internal/directory"
	"github.com/desertwitch/blockfs/internal/filetable"
	"github.com/desertwitch/blockfs/internal/inode"
)

// Whence is the reference point of [FileSystem.Seek].
type Whence int

const (
	// SeekSet seeks relative to the start of the file.
	SeekSet Whence = 0

	// SeekCurrent seeks relative to the current position.
	SeekCurrent Whence = 1

	// SeekEnd seeks relative to the end of the file.
	SeekEnd Whence = 2
)

// Open opens the file name. [Read] fails with [ErrNotFound] for a missing
// file; the other modes create it. The position starts at 0, or at the end
// of the file for [Append]. A file whose deletion is pending on its last
// close cannot be opened again until it is gone.
func (fs *FileSystem) Open(name string, mode Mode) (Handle, error) {
	if !mode.Valid() {
		return 0, fmt.Errorf("(filesystem-open) %w: %d", ErrInvalidMode, mode)
	}

	if name == directory.Root {
		return 0, fmt.Errorf("(filesystem-open) %w: cannot open root directory", ErrInvalidArgument)
	}

	if err := directory.ValidateName(name); err != nil {
		return 0, fmt.Errorf("(filesystem-open) %w", classify(err))
	}

	h, desc, err := fs.open(name, mode, false)
	if err != nil {
		return 0, fmt.Errorf("(filesystem-open) %w", err)
	}

	if mode == Append {
		entry := desc.Entry()
		entry.Lock()
		desc.Pos = entry.Inode.Length
		entry.Unlock()
	}

	return h, nil
}

// Create creates the new file name and opens it for [Write]. It fails with
// [ErrExists] if the name is taken, so that concurrent creators never share
// a file.
func (fs *FileSystem) Create(name string) (Handle, error) {
	if name == directory.Root {
		return 0, fmt.Errorf("(filesystem-create) %w: cannot create root directory", ErrInvalidArgument)
	}

	if err := directory.ValidateName(name); err != nil {
		return 0, fmt.Errorf("(filesystem-create) %w", classify(err))
	}

	h, _, err := fs.open(name, Write, true)
	if err != nil {
		return 0, fmt.Errorf("(filesystem-create) %w", err)
	}

	return h, nil
}

func (fs *FileSystem) open(name string, mode Mode, exclusive bool) (Handle, *filetable.Descriptor, error) {
	fs.Lock()
	defer fs.Unlock()

	i, ok := fs.dir.Lookup(name)

	switch {
	case ok && fs.table.IsDeleting(i):
		if mode.Creates() {
			return 0, nil, fmt.Errorf("%w: %q is being deleted", ErrBusy, name)
		}

		return 0, nil, fmt.Errorf("%w: %q", ErrNotFound, name)

	case ok && exclusive:
		return 0, nil, fmt.Errorf("%w: %q", ErrExists, name)

	case !ok && !mode.Creates():
		return 0, nil, fmt.Errorf("%w: %q", ErrNotFound, name)

	case !ok:
		var err error
		if i, err = fs.create(name); err != nil {
			return 0, nil, err
		}
	}

	h, desc, err := fs.table.Acquire(i, mode, func() (inode.Inode, error) {
		in, err := fs.inodes.Get(i)
		if err != nil {
			return inode.Inode{}, classify(err)
		}
		if in.Flag != inode.Used {
			return inode.Inode{}, fmt.Errorf("%w: inode %d of %q is %s", ErrCorrupted, i, name, in.Flag)
		}

		return in, nil
	})
	if err != nil {
		return 0, nil, err
	}

	return h, desc, nil
}

// create inserts name into the directory with a new, empty inode. The
// engine lock must be held.
func (fs *FileSystem) create(name string) (int, error) {
	i, err := fs.dir.Insert(name)
	if err != nil {
		return 0, classify(err)
	}

	in := inode.Inode{Flag: inode.Used}
	if err := fs.inodes.Put(i, &in); err != nil {
		_ = fs.dir.Remove(i)

		return 0, classify(err)
	}

	if err := fs.persistDirectory(); err != nil {
		_ = fs.dir.Remove(i)
		_ = fs.inodes.Put(i, &inode.Inode{})

		return 0, err
	}

	slog.Debug("Created file", "file", name, "inumber", i)

	return i, nil
}

// lockHandle returns the descriptor of h with its entry lock held. The
// returned function releases the lock.
func (fs *FileSystem) lockHandle(h Handle) (*filetable.Descriptor, func(), error) {
	desc, err := fs.table.Lookup(h)
	if err != nil {
		return nil, nil, classify(err)
	}

	entry := desc.Entry()
	entry.Lock()

	if desc.Closed() {
		entry.Unlock()

		return nil, nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}

	return desc, entry.Unlock, nil
}

// Read reads up to len(buf) bytes from the position of h and advances it.
// At the end of the file it returns 0 without error.
func (fs *FileSystem) Read(h Handle, buf []byte) (int, error) {
	desc, unlock, err := fs.lockHandle(h)
	if err != nil {
		return 0, fmt.Errorf("(filesystem-read) %w", err)
	}
	defer unlock()

	if !desc.Mode().CanRead() {
		return 0, fmt.Errorf("(filesystem-read) %w: handle is %s", ErrPermissionDenied, desc.Mode())
	}

	if len(buf) == 0 {
		return 0, fmt.Errorf("(filesystem-read) %w: empty buffer", ErrInvalidArgument)
	}

	entry := desc.Entry()

	n, err := fs.readAt(&entry.Inode, desc.Pos, buf)
	desc.Pos += n

	if err != nil {
		return n, fmt.Errorf("(filesystem-read) %w", classify(err))
	}

	return n, nil
}

// Write writes buf at the position of h and advances it, growing the file
// as needed. The inode is written back before Write returns, also on
// failure. A write that runs out of space is not undone: the number of
// bytes written before is returned together with an error wrapping
// [ErrOutOfSpace].
func (fs *FileSystem) Write(h Handle, buf []byte) (int, error) {
	desc, unlock, err := fs.lockHandle(h)
	if err != nil {
		return 0, fmt.Errorf("(filesystem-write) %w", err)
	}
	defer unlock()

	if !desc.Mode().CanWrite() {
		return 0, fmt.Errorf("(filesystem-write) %w: handle is %s", ErrPermissionDenied, desc.Mode())
	}

	if len(buf) == 0 {
		return 0, fmt.Errorf("(filesystem-write) %w: empty buffer", ErrInvalidArgument)
	}

	entry := desc.Entry()

	n, werr := fs.writeAt(&entry.Inode, desc.Pos, buf, fs.allocate)
	desc.Pos += n

	if err := fs.inodes.Put(entry.Inumber(), &entry.Inode); err != nil {
		return n, fmt.Errorf("(filesystem-write) %w", classify(err))
	}

	if werr != nil {
		return n, fmt.Errorf("(filesystem-write) %w", classify(werr))
	}

	return n, nil
}

// Seek moves the position of h to offset relative to whence, clamped to the
// bounds of the file, and returns the new position.
func (fs *FileSystem) Seek(h Handle, offset int, whence Whence) (int, error) {
	desc, unlock, err := fs.lockHandle(h)
	if err != nil {
		return 0, fmt.Errorf("(filesystem-seek) %w", err)
	}
	defer unlock()

	length := desc.Entry().Inode.Length

	var base int
	switch whence {
	case SeekSet:
		base = 0
	case SeekCurrent:
		base = desc.Pos
	case SeekEnd:
		base = length
	default:
		return 0, fmt.Errorf("(filesystem-seek) %w: whence %d", ErrInvalidArgument, whence)
	}

	desc.Pos = clampedAdd(base, offset, length)

	return desc.Pos, nil
}

// clampedAdd returns base+offset clamped to [0, limit] without overflowing.
// base must be within [0, limit].
func clampedAdd(base, offset, limit int) int {
	switch {
	case offset > limit-base:
		return limit
	case offset < -base:
		return 0
	default:
		return base + offset
	}
}

// Size returns the length of the file of h.
func (fs *FileSystem) Size(h Handle) (int, error) {
	desc, unlock, err := fs.lockHandle(h)
	if err != nil {
		return 0, fmt.Errorf("(filesystem-size) %w", err)
	}
	defer unlock()

	return desc.Entry().Inode.Length, nil
}

// Close closes h. The last close of a file writes its inode back and
// completes a deletion that was requested while it was open.
func (fs *FileSystem) Close(h Handle) error {
	desc, unlock, err := fs.lockHandle(h)
	if err != nil {
		return fmt.Errorf("(filesystem-close) %w", err)
	}
	defer unlock()

	fs.Lock()
	defer fs.Unlock()

	entry, last, err := fs.table.Release(h)
	if err != nil {
		return fmt.Errorf("(filesystem-close) %w", classify(err))
	}

	if !last {
		return nil
	}

	i := entry.Inumber()

	if fs.table.Deleted(entry) {
		if err := fs.remove(i, &entry.Inode); err != nil {
			return fmt.Errorf("(filesystem-close) %w", err)
		}
		slog.Debug("Completed deferred deletion", "inumber", i, "mode", desc.Mode())

		return nil
	}

	if err := fs.inodes.Put(i, &entry.Inode); err != nil {
		return fmt.Errorf("(filesystem-close) %w", classify(err))
	}

	return nil
}

// Delete deletes the file name. A file that is open is marked and deleted on
// its last close; its name stays reserved until then.
func (fs *FileSystem) Delete(name string) error {
	if name == directory.Root {
		return fmt.Errorf("(filesystem-delete) %w: cannot delete root directory", ErrInvalidArgument)
	}

	fs.Lock()
	defer fs.Unlock()

	i, ok := fs.dir.Lookup(name)
	if !ok || fs.table.IsDeleting(i) {
		return fmt.Errorf("(filesystem-delete) %w: %q", ErrNotFound, name)
	}

	if fs.table.MarkDeleted(i) {
		slog.Debug("Deferred deletion of open file", "file", name, "inumber", i)

		return nil
	}

	in, err := fs.inodes.Get(i)
	if err != nil {
		return fmt.Errorf("(filesystem-delete) %w", classify(err))
	}

	if err := fs.remove(i, &in); err != nil {
		return fmt.Errorf("(filesystem-delete) %w", err)
	}

	return nil
}
