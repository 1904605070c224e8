package directory

import "encoding/binary"

const (
	nameLengthSize = 4
	nameFieldSize  = MaxNameLen
	slotSize       = nameLengthSize + nameFieldSize
)

// EncodedSize returns the number of bytes [Directory.Encode] produces for
// capacity slots.
func EncodedSize(capacity int) int {
	return capacity * slotSize
}

// Encode returns the byte form of the table: the name length of every slot
// as big-endian int32, followed by the zero-padded name field of every slot.
func (d *Directory) Encode() []byte {
	b := make([]byte, EncodedSize(len(d.names)))
	fields := len(d.names) * nameLengthSize

	for i, n := range d.names {
		binary.BigEndian.PutUint32(b[i*nameLengthSize:], uint32(len(n))) //nolint:gosec
		copy(b[fields+i*nameFieldSize:fields+(i+1)*nameFieldSize], n)
	}

	return b
}

// Decode replaces the table with the slots covered by b. Slots past the end
// of b are left empty and bytes past the last slot are ignored. Slot lengths
// out of range, duplicate and invalid names are dropped and their slot
// numbers returned. The root slot is always restored.
func (d *Directory) Decode(b []byte) []int {
	d.reset()

	var dropped []int

	lengths := min(len(d.names), len(b)/nameLengthSize)
	fields := len(d.names) * nameLengthSize

	for i := 1; i < lengths; i++ {
		size := int(int32(binary.BigEndian.Uint32(b[i*nameLengthSize:]))) //nolint:gosec
		if size == 0 {
			continue
		}

		start := fields + i*nameFieldSize
		if size < 0 || size > MaxNameLen || start+size > len(b) {
			dropped = append(dropped, i)

			continue
		}

		name := string(b[start : start+size])
		if ValidateName(name) != nil {
			dropped = append(dropped, i)

			continue
		}
		if _, ok := d.index[name]; ok {
			dropped = append(dropped, i)

			continue
		}

		d.names[i] = name
		d.index[name] = i
	}

	return dropped
}
