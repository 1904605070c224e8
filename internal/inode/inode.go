// Package inode implements the per-file metadata records of the file system:
// the file length, a state flag, [DirectCount] direct block pointers and one
// indirect block pointer whose block holds [IndirectCount] further pointers.
package inode

import (
	"fmt"

	"github.com/desertwitch/blockfs/internal/device"
)

const (
	// DirectCount is the number of direct block pointers of an [Inode].
	DirectCount = 11

	// IndirectCount is the number of block pointers held by an indirect block.
	IndirectCount = device.BlockSize / pointerSize

	// MaxBlocks is the number of data blocks an [Inode] can address.
	MaxBlocks = DirectCount + IndirectCount

	// MaxFileSize is the largest file length in bytes.
	MaxFileSize = MaxBlocks * device.BlockSize
)

// Flag is the state of an [Inode].
type Flag int16

const (
	// Unused marks a free inode.
	Unused Flag = 0

	// Used marks an inode that belongs to a file.
	Used Flag = 1

	// Deleting marks an inode whose file is being deleted.
	Deleting Flag = 4
)

func (f Flag) valid() bool {
	return f == Unused || f == Used || f == Deleting
}

func (f Flag) String() string {
	switch f {
	case Unused:
		return "unused"
	case Used:
		return "used"
	case Deleting:
		return "deleting"
	default:
		return fmt.Sprintf("flag(%d)", int16(f))
	}
}

// Inode is the in-memory form of an inode record. The zero value is an
// unused inode without blocks.
type Inode struct {
	Length   int
	Flag     Flag
	Direct   [DirectCount]Pointer
	Indirect Pointer
}

// blockIndex returns the index of the block holding offset.
func blockIndex(offset int) (int, error) {
	if offset < 0 || offset >= MaxFileSize {
		return 0, fmt.Errorf("%w: offset %d", ErrFileTooLarge, offset)
	}

	return offset / device.BlockSize, nil
}

// Resolve returns the block holding the byte at offset, or [None] if no block
// has been allocated there yet.
func (in *Inode) Resolve(offset int, dev device.Device) (Pointer, error) {
	idx, err := blockIndex(offset)
	if err != nil {
		return None, err
	}

	if idx < DirectCount {
		return in.Direct[idx], nil
	}

	n, ok := in.Indirect.Get()
	if !ok {
		return None, nil
	}

	ib, err := readIndirect(dev, n)
	if err != nil {
		return None, fmt.Errorf("(inode-resolve) %w", err)
	}

	return ib[idx-DirectCount], nil
}

// Grow allocates the block holding offset and records it in the next free
// direct slot, or in the indirect block once the direct slots are exhausted.
// The indirect block itself is allocated on first use. The block must be the
// one following the last allocated block, otherwise [ErrNotSequential] is
// returned. Errors of alloc are returned as they are.
func (in *Inode) Grow(offset int, alloc func() (int, error), dev device.Device) (int, error) {
	idx, err := blockIndex(offset)
	if err != nil {
		return 0, err
	}

	if idx < DirectCount {
		if in.Direct[idx].IsSet() || (idx > 0 && !in.Direct[idx-1].IsSet()) {
			return 0, fmt.Errorf("%w: block %d", ErrNotSequential, idx)
		}

		n, err := alloc()
		if err != nil {
			return 0, err
		}
		in.Direct[idx] = Some(n)

		return n, nil
	}

	if !in.Direct[DirectCount-1].IsSet() {
		return 0, fmt.Errorf("%w: block %d", ErrNotSequential, idx)
	}

	ib, err := in.indirect(alloc, dev)
	if err != nil {
		return 0, err
	}

	slot := idx - DirectCount
	if ib[slot].IsSet() || (slot > 0 && !ib[slot-1].IsSet()) {
		return 0, fmt.Errorf("%w: block %d", ErrNotSequential, idx)
	}

	n, err := alloc()
	if err != nil {
		return 0, err
	}
	ib[slot] = Some(n)

	ind, _ := in.Indirect.Get()
	if err := writeIndirect(dev, ind, ib); err != nil {
		return 0, fmt.Errorf("(inode-grow) %w", err)
	}

	return n, nil
}

// indirect returns the indirect block, allocating and initializing it first
// if the inode has none yet.
func (in *Inode) indirect(alloc func() (int, error), dev device.Device) (*indirectBlock, error) {
	if n, ok := in.Indirect.Get(); ok {
		ib, err := readIndirect(dev, n)
		if err != nil {
			return nil, fmt.Errorf("(inode-grow) %w", err)
		}

		return ib, nil
	}

	n, err := alloc()
	if err != nil {
		return nil, err
	}

	ib := newIndirectBlock()
	if err := writeIndirect(dev, n, ib); err != nil {
		return nil, fmt.Errorf("(inode-grow) %w", err)
	}
	in.Indirect = Some(n)

	return ib, nil
}

// Release frees every block of the inode through free: the direct blocks,
// then the blocks named by the indirect block, then the indirect block. The
// inode is reset to [Unused] afterwards. On error the pointers of blocks
// already freed are cleared and the rest kept.
func (in *Inode) Release(free func(int) error, dev device.Device) error {
	for i, p := range in.Direct {
		n, ok := p.Get()
		if !ok {
			continue
		}
		if err := free(n); err != nil {
			return fmt.Errorf("(inode-release) %w", err)
		}
		in.Direct[i] = None
	}

	if ind, ok := in.Indirect.Get(); ok {
		ib, err := readIndirect(dev, ind)
		if err != nil {
			return fmt.Errorf("(inode-release) %w", err)
		}

		for i, p := range ib {
			n, ok := p.Get()
			if !ok {
				continue
			}
			if err := free(n); err != nil {
				// Keep the indirect block consistent with what is still owned.
				_ = writeIndirect(dev, ind, ib)

				return fmt.Errorf("(inode-release) %w", err)
			}
			ib[i] = None
		}

		if err := free(ind); err != nil {
			_ = writeIndirect(dev, ind, ib)

			return fmt.Errorf("(inode-release) %w", err)
		}
		in.Indirect = None
	}

	in.Length = 0
	in.Flag = Unused

	return nil
}

// Blocks returns every block owned by the inode: its data blocks in address
// order, followed by the indirect block if there is one.
func (in *Inode) Blocks(dev device.Device) ([]int, error) {
	var blocks []int

	for _, p := range in.Direct {
		if n, ok := p.Get(); ok {
			blocks = append(blocks, n)
		}
	}

	if ind, ok := in.Indirect.Get(); ok {
		ib, err := readIndirect(dev, ind)
		if err != nil {
			return nil, fmt.Errorf("(inode-blocks) %w", err)
		}

		for _, p := range ib {
			if n, ok := p.Get(); ok {
				blocks = append(blocks, n)
			}
		}
		blocks = append(blocks, ind)
	}

	return blocks, nil
}
