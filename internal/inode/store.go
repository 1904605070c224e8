package inode

import (
	"fmt"
	"sync"

	"github.com/desertwitch/blockfs/internal/device"
	"github.com/desertwitch/blockfs/internal/superblock"
)

// Store reads and writes inode records in the inode region of a device.
// Records share blocks, so every write is a read-modify-write of the block
// serialized by the [Store]'s lock.
type Store struct {
	sync.Mutex
	dev   device.Device
	count int
}

// NewStore returns a pointer to a new [Store] for count inodes.
func NewStore(dev device.Device, count int) *Store {
	return &Store{
		dev:   dev,
		count: count,
	}
}

// Count returns the number of inodes of the region.
func (s *Store) Count() int {
	return s.count
}

// location returns the block and byte offset of the record of inumber.
func (s *Store) location(inumber int) (int, int, error) {
	if inumber < 0 || inumber >= s.count {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrInvalidInumber, inumber, s.count)
	}

	block := superblock.InodeRegionStart + inumber/superblock.InodesPerBlock
	offset := (inumber % superblock.InodesPerBlock) * superblock.InodeRecordSize

	return block, offset, nil
}

// Get reads the record of inumber.
func (s *Store) Get(inumber int) (Inode, error) {
	block, offset, err := s.location(inumber)
	if err != nil {
		return Inode{}, fmt.Errorf("(inode-get) %w", err)
	}

	buf := make([]byte, device.BlockSize)

	s.Lock()
	err = s.dev.ReadBlock(block, buf)
	s.Unlock()

	if err != nil {
		return Inode{}, fmt.Errorf("(inode-get) %w", err)
	}

	in, err := Decode(buf[offset : offset+superblock.InodeRecordSize])
	if err != nil {
		return Inode{}, fmt.Errorf("(inode-get) inode %d: %w", inumber, err)
	}

	return in, nil
}

// Put writes the record of inumber.
func (s *Store) Put(inumber int, in *Inode) error {
	block, offset, err := s.location(inumber)
	if err != nil {
		return fmt.Errorf("(inode-put) %w", err)
	}

	s.Lock()
	defer s.Unlock()

	buf := make([]byte, device.BlockSize)
	if err := s.dev.ReadBlock(block, buf); err != nil {
		return fmt.Errorf("(inode-put) %w", err)
	}

	Encode(in, buf[offset:offset+superblock.InodeRecordSize])

	if err := s.dev.WriteBlock(block, buf); err != nil {
		return fmt.Errorf("(inode-put) %w", err)
	}

	return nil
}
