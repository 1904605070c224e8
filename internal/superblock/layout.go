package superblock

import (
	"encoding/binary"
	"math"

	"github.com/desertwitch/blockfs/internal/device"
)

const (
	// HeaderBlock is the block holding the superblock header.
	HeaderBlock = 0

	// InodeRegionStart is the first block of the inode region.
	InodeRegionStart = 1

	// InodeRecordSize is the size of one on-disk inode record in bytes.
	InodeRecordSize = 32

	// InodesPerBlock is the number of inode records held by one block.
	InodesPerBlock = device.BlockSize / InodeRecordSize

	// MaxBlocks is the largest device the 16-bit block pointers can address.
	MaxBlocks = math.MaxInt16

	// DefaultInodes is the inode count used when an unformatted device is
	// mounted.
	DefaultInodes = 64

	// EndOfList terminates the free list.
	EndOfList = -1

	// minDataBlocks is the least number of data blocks a format must leave.
	minDataBlocks = 2
)

const (
	headerTotalBlocksStart = 0
	headerTotalBlocksSize  = 4
	headerTotalBlocksEnd   = headerTotalBlocksStart + headerTotalBlocksSize

	headerTotalInodesStart = headerTotalBlocksEnd
	headerTotalInodesSize  = 4
	headerTotalInodesEnd   = headerTotalInodesStart + headerTotalInodesSize

	headerFreeHeadStart = headerTotalInodesEnd
	headerFreeHeadSize  = 4
	headerFreeHeadEnd   = headerFreeHeadStart + headerFreeHeadSize

	nextPointerStart = 0
	nextPointerEnd   = 4
)

// InodeBlocks returns the number of blocks needed to hold the records of the
// given number of inodes.
func InodeBlocks(inodes int) int {
	return (inodes + InodesPerBlock - 1) / InodesPerBlock
}

// header is the decoded content of the [HeaderBlock].
type header struct {
	totalBlocks int
	totalInodes int
	freeHead    int
}

func encodeHeader(h header) []byte {
	buf := make([]byte, device.BlockSize)
	putInt32(buf[headerTotalBlocksStart:headerTotalBlocksEnd], h.totalBlocks)
	putInt32(buf[headerTotalInodesStart:headerTotalInodesEnd], h.totalInodes)
	putInt32(buf[headerFreeHeadStart:headerFreeHeadEnd], h.freeHead)

	return buf
}

func decodeHeader(buf []byte) header {
	return header{
		totalBlocks: getInt32(buf[headerTotalBlocksStart:headerTotalBlocksEnd]),
		totalInodes: getInt32(buf[headerTotalInodesStart:headerTotalInodesEnd]),
		freeHead:    getInt32(buf[headerFreeHeadStart:headerFreeHeadEnd]),
	}
}

// encodeFree returns the content of a free block pointing at next.
func encodeFree(next int) []byte {
	buf := make([]byte, device.BlockSize)
	putInt32(buf[nextPointerStart:nextPointerEnd], next)

	return buf
}

func decodeFree(buf []byte) int {
	return getInt32(buf[nextPointerStart:nextPointerEnd])
}

func putInt32(b []byte, v int) {
	binary.BigEndian.PutUint32(b, uint32(int32(v))) //nolint:gosec
}

func getInt32(b []byte) int {
	return int(int32(binary.BigEndian.Uint32(b))) //nolint:gosec
}
