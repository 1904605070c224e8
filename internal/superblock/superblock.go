// Package superblock implements the header block of the file system and the
// free-block list that is threaded through the content of unused blocks.
//
// A [Superblock] is not safe for concurrent use; callers serialize access.
package superblock

import (
	"errors"
	"fmt"

	"github.com/desertwitch/blockfs/internal/device"
)

// Superblock holds the block and inode counts and the free-list head of a
// device, together with an in-memory set of the free blocks that is used to
// detect double frees.
type Superblock struct {
	dev         device.Device
	totalBlocks int
	totalInodes int
	freeHead    int
	free        []bool
	freeCount   int
}

// New returns a pointer to a new [Superblock] for an unformatted device. It
// must be formatted with [Superblock.Format] before use.
func New(dev device.Device) *Superblock {
	return &Superblock{
		dev:         dev,
		totalBlocks: dev.Blocks(),
		freeHead:    EndOfList,
		free:        make([]bool, dev.Blocks()),
	}
}

// Load reads the header block of a device and walks its free list. A header
// that does not match the device returns [ErrUnformatted], an inconsistent
// free list returns [ErrCorrupted].
func Load(dev device.Device) (*Superblock, error) {
	buf := make([]byte, device.BlockSize)
	if err := dev.ReadBlock(HeaderBlock, buf); err != nil {
		return nil, fmt.Errorf("(superblock-load) %w", err)
	}

	h := decodeHeader(buf)
	if err := validateHeader(h, dev.Blocks()); err != nil {
		return nil, fmt.Errorf("(superblock-load) %w", err)
	}

	sb := &Superblock{
		dev:         dev,
		totalBlocks: h.totalBlocks,
		totalInodes: h.totalInodes,
		freeHead:    h.freeHead,
		free:        make([]bool, h.totalBlocks),
	}

	if err := sb.walkFreeList(func(n int) {
		sb.free[n] = true
		sb.freeCount++
	}); err != nil {
		return nil, fmt.Errorf("(superblock-load) %w", err)
	}

	return sb, nil
}

func validateHeader(h header, blocks int) error {
	if h.totalBlocks != blocks || h.totalBlocks > MaxBlocks {
		return fmt.Errorf("%w: header counts %d blocks, device has %d", ErrUnformatted, h.totalBlocks, blocks)
	}

	if h.totalInodes <= 0 || InodeRegionStart+InodeBlocks(h.totalInodes) >= h.totalBlocks {
		return fmt.Errorf("%w: header counts %d inodes", ErrUnformatted, h.totalInodes)
	}

	first := InodeRegionStart + InodeBlocks(h.totalInodes)
	if h.freeHead != EndOfList && (h.freeHead < first || h.freeHead >= h.totalBlocks) {
		return fmt.Errorf("%w: free list head %d", ErrUnformatted, h.freeHead)
	}

	return nil
}

// walkFreeList follows the free list on the device, calling fn for every
// block in list order.
func (sb *Superblock) walkFreeList(fn func(n int)) error {
	seen := make([]bool, sb.totalBlocks)
	buf := make([]byte, device.BlockSize)

	for n := sb.freeHead; n != EndOfList; {
		if n < sb.FirstDataBlock() || n >= sb.totalBlocks {
			return fmt.Errorf("%w: pointer to block %d", ErrCorrupted, n)
		}
		if seen[n] {
			return fmt.Errorf("%w: cycle at block %d", ErrCorrupted, n)
		}
		seen[n] = true

		fn(n)

		if err := sb.dev.ReadBlock(n, buf); err != nil {
			return err
		}
		n = decodeFree(buf)
	}

	return nil
}

// Format writes a new header for maxFiles inodes, zeroes the inode region and
// links every data block into the free list in ascending order.
func (sb *Superblock) Format(maxFiles int) error {
	if maxFiles <= 0 {
		return fmt.Errorf("(superblock-format) %w: file count %d", ErrInvalidArgument, maxFiles)
	}

	total := sb.dev.Blocks()
	if total > MaxBlocks {
		return fmt.Errorf("(superblock-format) %w: %d blocks exceed %d", ErrInvalidArgument, total, MaxBlocks)
	}

	first := InodeRegionStart + InodeBlocks(maxFiles)
	if total-first < minDataBlocks {
		return fmt.Errorf("(superblock-format) %w: %d inodes leave too few data blocks", ErrInvalidArgument, maxFiles)
	}

	zero := make([]byte, device.BlockSize)
	for n := InodeRegionStart; n < first; n++ {
		if err := sb.dev.WriteBlock(n, zero); err != nil {
			return fmt.Errorf("(superblock-format) %w", err)
		}
	}

	free := make([]bool, total)
	for n := first; n < total; n++ {
		next := n + 1
		if next == total {
			next = EndOfList
		}
		if err := sb.dev.WriteBlock(n, encodeFree(next)); err != nil {
			return fmt.Errorf("(superblock-format) %w", err)
		}
		free[n] = true
	}

	h := header{totalBlocks: total, totalInodes: maxFiles, freeHead: first}
	if err := sb.dev.WriteBlock(HeaderBlock, encodeHeader(h)); err != nil {
		return fmt.Errorf("(superblock-format) %w", err)
	}

	sb.totalBlocks = total
	sb.totalInodes = maxFiles
	sb.freeHead = first
	sb.free = free
	sb.freeCount = total - first

	return nil
}

// Allocate pops the head of the free list and returns its block number. The
// returned block is zeroed. An empty free list returns [ErrOutOfSpace].
func (sb *Superblock) Allocate() (int, error) {
	if sb.freeHead == EndOfList {
		return EndOfList, fmt.Errorf("(superblock-alloc) %w", ErrOutOfSpace)
	}

	n := sb.freeHead

	buf := make([]byte, device.BlockSize)
	if err := sb.dev.ReadBlock(n, buf); err != nil {
		return EndOfList, fmt.Errorf("(superblock-alloc) %w", err)
	}

	next := decodeFree(buf)
	if next != EndOfList && (next < sb.FirstDataBlock() || next >= sb.totalBlocks || !sb.free[next]) {
		return EndOfList, fmt.Errorf("(superblock-alloc) %w: block %d points at %d", ErrCorrupted, n, next)
	}

	if err := sb.writeHeader(next); err != nil {
		return EndOfList, fmt.Errorf("(superblock-alloc) %w", err)
	}

	sb.freeHead = next
	sb.free[n] = false
	sb.freeCount--

	if err := sb.dev.WriteBlock(n, make([]byte, device.BlockSize)); err != nil {
		if ferr := sb.Free(n); ferr != nil {
			return EndOfList, fmt.Errorf("(superblock-alloc) %w", errors.Join(err, ferr))
		}

		return EndOfList, fmt.Errorf("(superblock-alloc) %w", err)
	}

	return n, nil
}

// Free pushes block n onto the head of the free list. Blocks outside of the
// data region return [ErrOutOfRange], blocks already free [ErrDoubleFree].
func (sb *Superblock) Free(n int) error {
	if n < sb.FirstDataBlock() || n >= sb.totalBlocks {
		return fmt.Errorf("(superblock-free) %w: %d", ErrOutOfRange, n)
	}

	if sb.free[n] {
		return fmt.Errorf("(superblock-free) %w: %d", ErrDoubleFree, n)
	}

	if err := sb.dev.WriteBlock(n, encodeFree(sb.freeHead)); err != nil {
		return fmt.Errorf("(superblock-free) %w", err)
	}

	if err := sb.writeHeader(n); err != nil {
		return fmt.Errorf("(superblock-free) %w", err)
	}

	sb.freeHead = n
	sb.free[n] = true
	sb.freeCount++

	return nil
}

func (sb *Superblock) writeHeader(freeHead int) error {
	h := header{
		totalBlocks: sb.totalBlocks,
		totalInodes: sb.totalInodes,
		freeHead:    freeHead,
	}

	return sb.dev.WriteBlock(HeaderBlock, encodeHeader(h))
}

// FreeBlocks returns the free blocks in list order, as read from the device.
func (sb *Superblock) FreeBlocks() ([]int, error) {
	blocks := make([]int, 0, sb.freeCount)

	if err := sb.walkFreeList(func(n int) {
		blocks = append(blocks, n)
	}); err != nil {
		return nil, fmt.Errorf("(superblock-list) %w", err)
	}

	return blocks, nil
}

// IsFree returns whether block n is on the free list.
func (sb *Superblock) IsFree(n int) bool {
	if n < 0 || n >= len(sb.free) {
		return false
	}

	return sb.free[n]
}

// TotalBlocks returns the number of blocks of the device.
func (sb *Superblock) TotalBlocks() int {
	return sb.totalBlocks
}

// TotalInodes returns the number of inodes of the inode region.
func (sb *Superblock) TotalInodes() int {
	return sb.totalInodes
}

// InodeBlocks returns the number of blocks of the inode region.
func (sb *Superblock) InodeBlocks() int {
	return InodeBlocks(sb.totalInodes)
}

// FirstDataBlock returns the first block following the inode region.
func (sb *Superblock) FirstDataBlock() int {
	return InodeRegionStart + sb.InodeBlocks()
}

// FreeCount returns the number of blocks on the free list.
func (sb *Superblock) FreeCount() int {
	return sb.freeCount
}
