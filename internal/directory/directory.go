// Package directory implements the flat name table of the file system. Slot
// i of the table names the file of inumber i; slot 0 is the root directory
// itself, whose inode holds the encoded table.
//
// A [Directory] is not safe for concurrent use; callers serialize access.
package directory

import (
	"fmt"
	"strings"
)

const (
	// MaxNameLen is the longest file name in bytes.
	MaxNameLen = 30

	// Root is the name of slot 0.
	Root = "/"

	// RootInumber is the inumber of the root directory.
	RootInumber = 0
)

// Directory maps names to inumbers.
type Directory struct {
	names []string
	index map[string]int
}

// New returns a pointer to a new [Directory] with capacity slots, all empty
// except the root slot.
func New(capacity int) *Directory {
	d := &Directory{
		names: make([]string, capacity),
		index: make(map[string]int, capacity),
	}
	d.reset()

	return d
}

func (d *Directory) reset() {
	clear(d.names)
	clear(d.index)

	if len(d.names) > 0 {
		d.names[RootInumber] = Root
		d.index[Root] = RootInumber
	}
}

// ValidateName returns [ErrInvalidName] if name is not storable.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLen || strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// Capacity returns the number of slots including the root slot.
func (d *Directory) Capacity() int {
	return len(d.names)
}

// Len returns the number of files, not counting the root.
func (d *Directory) Len() int {
	return len(d.index) - 1
}

// Lookup returns the inumber of name.
func (d *Directory) Lookup(name string) (int, bool) {
	i, ok := d.index[name]

	return i, ok
}

// Name returns the name held by slot i, or "" for an empty slot.
func (d *Directory) Name(i int) string {
	if i < 0 || i >= len(d.names) {
		return ""
	}

	return d.names[i]
}

// Insert stores name in the first empty slot and returns the slot index.
func (d *Directory) Insert(name string) (int, error) {
	if err := ValidateName(name); err != nil {
		return 0, fmt.Errorf("(directory-insert) %w", err)
	}

	if _, ok := d.index[name]; ok {
		return 0, fmt.Errorf("(directory-insert) %w: %q", ErrExists, name)
	}

	for i, n := range d.names {
		if n != "" {
			continue
		}
		d.names[i] = name
		d.index[name] = i

		return i, nil
	}

	return 0, fmt.Errorf("(directory-insert) %w: %d slots", ErrFull, len(d.names))
}

// Remove empties slot i.
func (d *Directory) Remove(i int) error {
	if i <= RootInumber || i >= len(d.names) || d.names[i] == "" {
		return fmt.Errorf("(directory-remove) %w: slot %d", ErrNotFound, i)
	}

	delete(d.index, d.names[i])
	d.names[i] = ""

	return nil
}

// Entry is a populated directory slot.
type Entry struct {
	Name    string
	Inumber int
}

// Entries returns the populated slots in slot order, without the root.
func (d *Directory) Entries() []Entry {
	entries := make([]Entry, 0, d.Len())

	for i, n := range d.names {
		if i == RootInumber || n == "" {
			continue
		}
		entries = append(entries, Entry{Name: n, Inumber: i})
	}

	return entries
}
