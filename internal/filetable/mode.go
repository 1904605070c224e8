package filetable

import "fmt"

// Mode is the access mode of an open file.
type Mode int

const (
	// Read opens an existing file for reading.
	Read Mode = iota

	// Write opens or creates a file for writing.
	Write

	// ReadWrite opens or creates a file for reading and writing.
	ReadWrite

	// Append opens or creates a file for writing at its end.
	Append
)

// ParseMode maps the short ("r", "w", "w+", "a") and the long ("READ",
// "WRITE", "READ_WRITE", "APPEND") mode names to a [Mode].
func ParseMode(s string) (Mode, error) {
	switch s {
	case "r", "READ":
		return Read, nil
	case "w", "WRITE":
		return Write, nil
	case "w+", "READ_WRITE":
		return ReadWrite, nil
	case "a", "APPEND":
		return Append, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Valid returns whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= Read && m <= Append
}

// CanRead returns whether the mode permits reading.
func (m Mode) CanRead() bool {
	return m == Read || m == ReadWrite
}

// CanWrite returns whether the mode permits writing.
func (m Mode) CanWrite() bool {
	return m == Write || m == ReadWrite || m == Append
}

// Creates returns whether opening a missing name in the mode creates it.
func (m Mode) Creates() bool {
	return m.CanWrite()
}

func (m Mode) String() string {
	switch m {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case ReadWrite:
		return "READ_WRITE"
	case Append:
		return "APPEND"
	default:
		return fmt.Sprintf("MODE(%d)", int(m))
	}
}
