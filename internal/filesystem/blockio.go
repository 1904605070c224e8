package filesystem

import (
	"fmt"

	"github.com/desertwitch/blockfs/internal/device"
	"github.com/desertwitch/blockfs/internal/inode"
)

// readAt copies the content of a file from offset off into p, block by
// block, and returns the number of bytes copied. Nothing is copied at or
// past the end of the file.
func (fs *FileSystem) readAt(in *inode.Inode, off int, p []byte) (int, error) {
	n := min(len(p), in.Length-off)
	if n <= 0 {
		return 0, nil
	}

	buf := make([]byte, device.BlockSize)

	done := 0
	for done < n {
		pos := off + done

		ptr, err := in.Resolve(pos, fs.dev)
		if err != nil {
			return done, err
		}

		block, ok := ptr.Get()
		if !ok {
			return done, fmt.Errorf("%w: no block at offset %d", ErrCorrupted, pos)
		}

		if err := fs.dev.ReadBlock(block, buf); err != nil {
			return done, err
		}

		done += copy(p[done:n], buf[pos%device.BlockSize:])
	}

	return done, nil
}

// writeAt writes p into a file from offset off, block by block. Missing
// blocks are allocated through alloc, partially covered blocks are read
// before they are modified. The length of the inode grows with every block
// written and is never reduced. On error the number of bytes written before
// it is returned with it.
func (fs *FileSystem) writeAt(in *inode.Inode, off int, p []byte, alloc func() (int, error)) (int, error) {
	buf := make([]byte, device.BlockSize)

	done := 0
	for done < len(p) {
		pos := off + done
		start := pos % device.BlockSize
		chunk := min(len(p)-done, device.BlockSize-start)

		ptr, err := in.Resolve(pos, fs.dev)
		if err != nil {
			return done, err
		}

		block, ok := ptr.Get()
		switch {
		case !ok:
			block, err = in.Grow(pos, alloc, fs.dev)
			if err != nil {
				return done, err
			}
			clear(buf)

		case chunk < device.BlockSize:
			if err := fs.dev.ReadBlock(block, buf); err != nil {
				return done, err
			}
		}

		copy(buf[start:], p[done:done+chunk])

		if err := fs.dev.WriteBlock(block, buf); err != nil {
			return done, err
		}

		done += chunk
		in.Length = max(in.Length, pos+chunk)
	}

	return done, nil
}
