package filesystem

import (
	"fmt"
	"io"
)

var (
	_ io.ReadWriteSeeker = (*File)(nil)
	_ io.Closer          = (*File)(nil)
)

// File is an open file of a [FileSystem] with the [io] interfaces.
type File struct {
	fs   *FileSystem
	h    Handle
	name string
}

// OpenFile opens the file name like [FileSystem.Open] and returns it as a
// [File].
func (fs *FileSystem) OpenFile(name string, mode Mode) (*File, error) {
	h, err := fs.Open(name, mode)
	if err != nil {
		return nil, err
	}

	return &File{fs: fs, h: h, name: name}, nil
}

// CreateFile creates the new file name like [FileSystem.Create] and returns
// it as a [File].
func (fs *FileSystem) CreateFile(name string) (*File, error) {
	h, err := fs.Create(name)
	if err != nil {
		return nil, err
	}

	return &File{fs: fs, h: h, name: name}, nil
}

// Name returns the name the file was opened with.
func (f *File) Name() string {
	return f.name
}

// Handle returns the handle of the file.
func (f *File) Handle() Handle {
	return f.h
}

// Read implements [io.Reader]. It returns [io.EOF] at the end of the file.
func (f *File) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n, err := f.fs.Read(f.h, p)
	if err != nil {
		return n, err
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}

// Write implements [io.Writer].
func (f *File) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	return f.fs.Write(f.h, p)
}

// Seek implements [io.Seeker]. Positions are clamped to the bounds of the
// file.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.fs.Seek(f.h, int(offset), Whence(whence))
	if err != nil {
		return 0, fmt.Errorf("(filesystem-file) %w", err)
	}

	return int64(pos), nil
}

// Size returns the length of the file.
func (f *File) Size() (int, error) {
	return f.fs.Size(f.h)
}

// Close implements [io.Closer].
func (f *File) Close() error {
	return f.fs.Close(f.h)
}
