package inode

import "strconv"

// unset is the on-disk encoding of a [Pointer] without a block.
const unset = -1

// Pointer is an optional block number. The zero value holds no block.
type Pointer struct {
	block int
	set   bool
}

// None is the [Pointer] without a block.
var None = Pointer{} //nolint:gochecknoglobals

// Some returns a [Pointer] to block n.
func Some(n int) Pointer {
	return Pointer{block: n, set: true}
}

// Get returns the block number and whether the [Pointer] holds one.
func (p Pointer) Get() (int, bool) {
	return p.block, p.set
}

// IsSet returns whether the [Pointer] holds a block.
func (p Pointer) IsSet() bool {
	return p.set
}

func (p Pointer) String() string {
	if !p.set {
		return "none"
	}

	return strconv.Itoa(p.block)
}

func (p Pointer) encode() int {
	if !p.set {
		return unset
	}

	return p.block
}

func decodePointer(v int) (Pointer, bool) {
	switch {
	case v == unset:
		return None, true
	case v < 0:
		return None, false
	default:
		return Some(v), true
	}
}
