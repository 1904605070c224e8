// Package filetable implements the open file table: the entries of open
// files keyed by inumber and the handles issued on them, each with its own
// mode and seek position.
package filetable

import (
	"fmt"
	"sync"

	"github.com/desertwitch/blockfs/internal/inode"
)

const slotBits = 32

// Handle identifies an open file. It encodes a slot of the table and the
// generation of that slot, so handles of recycled slots are told apart.
type Handle uint64

func newHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<slotBits | uint64(slot)) //nolint:gosec
}

func (h Handle) slot() int {
	return int(uint32(h)) //nolint:gosec
}

func (h Handle) generation() uint32 {
	return uint32(h >> slotBits)
}

// Entry is the shared state of one open file. The embedded mutex is the
// entry lock; it guards Inode and the positions of all descriptors of the
// entry.
type Entry struct {
	sync.Mutex
	Inode inode.Inode

	inumber int
	refs    int
	deleted bool
}

// Inumber returns the inumber of the file.
func (e *Entry) Inumber() int {
	return e.inumber
}

// Descriptor is the per-handle state of an open file. Pos is guarded by the
// entry lock.
type Descriptor struct {
	Pos int

	entry  *Entry
	mode   Mode
	closed bool
}

// Entry returns the shared state of the file.
func (d *Descriptor) Entry() *Entry {
	return d.entry
}

// Mode returns the access mode of the handle.
func (d *Descriptor) Mode() Mode {
	return d.mode
}

// Closed returns whether the handle has been released. It must be called
// with the entry lock held.
func (d *Descriptor) Closed() bool {
	return d.closed
}

type slot struct {
	gen  uint32
	desc *Descriptor
}

// Table is the open file table. Its state is guarded by the embedded mutex.
type Table struct {
	sync.Mutex
	slots   []slot
	free    []int
	entries map[int]*Entry
}

// NewTable returns a pointer to a new, empty [Table].
func NewTable() *Table {
	return &Table{
		entries: make(map[int]*Entry),
	}
}

// Acquire opens a handle on inumber. The entry is shared with other handles
// on the same file; load is called to read the inode when there is none yet.
func (t *Table) Acquire(inumber int, mode Mode, load func() (inode.Inode, error)) (Handle, *Descriptor, error) {
	t.Lock()
	defer t.Unlock()

	entry, ok := t.entries[inumber]
	if !ok {
		in, err := load()
		if err != nil {
			return 0, nil, fmt.Errorf("(filetable-acquire) %w", err)
		}

		entry = &Entry{Inode: in, inumber: inumber}
		t.entries[inumber] = entry
	}
	entry.refs++

	desc := &Descriptor{entry: entry, mode: mode}

	var i int
	if n := len(t.free); n > 0 {
		i = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		i = len(t.slots)
		t.slots = append(t.slots, slot{})
	}

	t.slots[i].gen++
	t.slots[i].desc = desc

	return newHandle(i, t.slots[i].gen), desc, nil
}

func (t *Table) lookup(h Handle) (*Descriptor, error) {
	i := h.slot()
	if i >= len(t.slots) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}

	s := t.slots[i]
	if s.desc == nil || s.gen != h.generation() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}

	return s.desc, nil
}

// Lookup returns the descriptor of a handle.
func (t *Table) Lookup(h Handle) (*Descriptor, error) {
	t.Lock()
	defer t.Unlock()

	desc, err := t.lookup(h)
	if err != nil {
		return nil, fmt.Errorf("(filetable-lookup) %w", err)
	}

	return desc, nil
}

// Release invalidates a handle. The entry lock of the handle's file must be
// held. When the last handle of a file is released the entry is removed from
// the table and returned with last set; the caller then owns it.
func (t *Table) Release(h Handle) (*Entry, bool, error) {
	t.Lock()
	defer t.Unlock()

	desc, err := t.lookup(h)
	if err != nil {
		return nil, false, fmt.Errorf("(filetable-release) %w", err)
	}

	i := h.slot()
	t.slots[i].desc = nil
	t.free = append(t.free, i)
	desc.closed = true

	entry := desc.entry
	entry.refs--

	if entry.refs > 0 {
		return entry, false, nil
	}

	delete(t.entries, entry.inumber)

	return entry, true, nil
}

// MarkDeleted marks the open file inumber for deletion on its last release.
// It returns false if the file is not open.
func (t *Table) MarkDeleted(inumber int) bool {
	t.Lock()
	defer t.Unlock()

	entry, ok := t.entries[inumber]
	if !ok {
		return false
	}
	entry.deleted = true

	return true
}

// Deleted returns whether an entry has been marked for deletion.
func (t *Table) Deleted(e *Entry) bool {
	t.Lock()
	defer t.Unlock()

	return e.deleted
}

// IsDeleting returns whether the open file inumber is marked for deletion.
func (t *Table) IsDeleting(inumber int) bool {
	t.Lock()
	defer t.Unlock()

	entry, ok := t.entries[inumber]

	return ok && entry.deleted
}

// IsOpen returns whether any handle is open on inumber.
func (t *Table) IsOpen(inumber int) bool {
	return t.Refs(inumber) > 0
}

// Refs returns the number of handles open on inumber.
func (t *Table) Refs(inumber int) int {
	t.Lock()
	defer t.Unlock()

	if entry, ok := t.entries[inumber]; ok {
		return entry.refs
	}

	return 0
}

// Empty returns whether no handle is open.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Len returns the number of open handles.
func (t *Table) Len() int {
	t.Lock()
	defer t.Unlock()

	return len(t.slots) - len(t.free)
}
