package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/desertwitch/blockfs/internal/device"
	"github.com/desertwitch/blockfs/internal/superblock"
)

const (
	recordLengthStart = 0
	recordLengthSize  = 4
	recordLengthEnd   = recordLengthStart + recordLengthSize

	recordReservedStart = recordLengthEnd
	recordReservedSize  = 2
	recordReservedEnd   = recordReservedStart + recordReservedSize

	recordFlagStart = recordReservedEnd
	recordFlagSize  = 2
	recordFlagEnd   = recordFlagStart + recordFlagSize

	recordDirectStart = recordFlagEnd
	recordDirectSize  = DirectCount * pointerSize
	recordDirectEnd   = recordDirectStart + recordDirectSize

	recordIndirectStart = recordDirectEnd
	recordIndirectSize  = pointerSize
	recordIndirectEnd   = recordIndirectStart + recordIndirectSize

	pointerSize = 2
)

// The record layout must fill the record size the superblock reserves.
var _ [superblock.InodeRecordSize - recordIndirectEnd]struct{}

// Encode writes the record of an [Inode] into b, which must be at least
// [superblock.InodeRecordSize] bytes long.
func Encode(in *Inode, b []byte) {
	binary.BigEndian.PutUint32(b[recordLengthStart:recordLengthEnd], uint32(in.Length)) //nolint:gosec
	binary.BigEndian.PutUint16(b[recordReservedStart:recordReservedEnd], 0)
	putInt16(b[recordFlagStart:recordFlagEnd], int(in.Flag))

	for i, p := range in.Direct {
		start := recordDirectStart + i*pointerSize
		putInt16(b[start:start+pointerSize], p.encode())
	}

	putInt16(b[recordIndirectStart:recordIndirectEnd], in.Indirect.encode())
}

// Decode reads an [Inode] from its record in b.
func Decode(b []byte) (Inode, error) {
	var in Inode

	length := int(int32(binary.BigEndian.Uint32(b[recordLengthStart:recordLengthEnd]))) //nolint:gosec
	if length < 0 || length > MaxFileSize {
		return Inode{}, fmt.Errorf("%w: length %d", ErrMalformed, length)
	}
	in.Length = length

	flag := Flag(getInt16(b[recordFlagStart:recordFlagEnd]))
	if !flag.valid() {
		return Inode{}, fmt.Errorf("%w: flag %d", ErrMalformed, flag)
	}
	in.Flag = flag

	for i := range in.Direct {
		start := recordDirectStart + i*pointerSize

		p, ok := decodePointer(getInt16(b[start : start+pointerSize]))
		if !ok {
			return Inode{}, fmt.Errorf("%w: direct pointer %d", ErrMalformed, i)
		}
		in.Direct[i] = p
	}

	p, ok := decodePointer(getInt16(b[recordIndirectStart:recordIndirectEnd]))
	if !ok {
		return Inode{}, fmt.Errorf("%w: indirect pointer", ErrMalformed)
	}
	in.Indirect = p

	return in, nil
}

// indirectBlock is a data block read as block pointers.
type indirectBlock [IndirectCount]Pointer

func newIndirectBlock() *indirectBlock {
	return &indirectBlock{}
}

func readIndirect(dev device.Device, n int) (*indirectBlock, error) {
	buf := make([]byte, device.BlockSize)
	if err := dev.ReadBlock(n, buf); err != nil {
		return nil, err
	}

	ib := newIndirectBlock()
	for i := range ib {
		p, ok := decodePointer(getInt16(buf[i*pointerSize : (i+1)*pointerSize]))
		if !ok {
			return nil, fmt.Errorf("%w: indirect block %d slot %d", ErrMalformed, n, i)
		}
		ib[i] = p
	}

	return ib, nil
}

func writeIndirect(dev device.Device, n int, ib *indirectBlock) error {
	buf := make([]byte, device.BlockSize)
	for i, p := range ib {
		putInt16(buf[i*pointerSize:(i+1)*pointerSize], p.encode())
	}

	return dev.WriteBlock(n, buf)
}

func putInt16(b []byte, v int) {
	binary.BigEndian.PutUint16(b, uint16(int16(v))) //nolint:gosec
}

func getInt16(b []byte) int {
	return int(int16(binary.BigEndian.Uint16(b))) //nolint:gosec
}
