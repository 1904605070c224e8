package device

import (
	"fmt"
	"sync"
)

// Memory is a [Device] holding all of its blocks in memory.
type Memory struct {
	sync.RWMutex
	data []byte
}

var _ Device = (*Memory)(nil)

// NewMemory returns a pointer to a new zeroed [Memory] device of the given
// number of blocks.
func NewMemory(blocks int) *Memory {
	return &Memory{
		data: make([]byte, blocks*BlockSize),
	}
}

// Blocks returns the number of blocks of the device.
func (m *Memory) Blocks() int {
	return len(m.data) / BlockSize
}

// ReadBlock copies block n into buf.
func (m *Memory) ReadBlock(n int, buf []byte) error {
	if err := checkAccess(n, m.Blocks(), buf); err != nil {
		return fmt.Errorf("(device-mem) %w", err)
	}

	m.RLock()
	defer m.RUnlock()

	copy(buf, m.data[n*BlockSize:(n+1)*BlockSize])

	return nil
}

// WriteBlock copies buf into block n.
func (m *Memory) WriteBlock(n int, buf []byte) error {
	if err := checkAccess(n, m.Blocks(), buf); err != nil {
		return fmt.Errorf("(device-mem) %w", err)
	}

	m.Lock()
	defer m.Unlock()

	copy(m.data[n*BlockSize:(n+1)*BlockSize], buf)

	return nil
}
