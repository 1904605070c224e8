package filesystem

import (
	"bytes"
	"io"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertwitch/blockfs/internal/device"
	"github.com/desertwitch/blockfs/internal/directory"
	"github.com/desertwitch/blockfs/internal/inode"
	"github.com/desertwitch/blockfs/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mounted(t *testing.T, blocks int) (*device.Memory, *FileSystem) {
	t.Helper()

	dev := device.NewMemory(blocks)
	fs, err := Mount(dev)
	require.NoError(t, err)

	return dev, fs
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}

	return b
}

func writeFile(t *testing.T, fs *FileSystem, name string, data []byte) {
	t.Helper()

	h, err := fs.Open(name, Write)
	require.NoError(t, err)

	n, err := fs.Write(h, data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	require.NoError(t, fs.Close(h))
}

func readFile(t *testing.T, fs *FileSystem, name string) []byte {
	t.Helper()

	f, err := fs.OpenFile(name, Read)
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	return data
}

func requireConsistent(t *testing.T, fs *FileSystem) {
	t.Helper()

	report, err := fs.Check()
	require.NoError(t, err)
	require.True(t, report.OK(), "%+v", report)
}

// TestMount_Success_Unformatted tests mounting a blank device.
func TestMount_Success_Unformatted(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	usage := fs.Usage()
	assert.Equal(t, 100, usage.TotalBlocks)
	assert.Equal(t, 64, usage.TotalInodes)
	assert.Equal(t, 1, usage.UsedInodes)
	assert.Equal(t, 100-1-4, usage.DataBlocks)
	assert.Equal(t, 5, usage.UsedBlocks)

	files, err := fs.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	requireConsistent(t, fs)
}

// TestMount_Success_WithInodes tests the inode count of an initial format.
func TestMount_Success_WithInodes(t *testing.T) {
	t.Parallel()

	fs, err := Mount(device.NewMemory(100), WithInodes(16))
	require.NoError(t, err)

	assert.Equal(t, 16, fs.Usage().TotalInodes)
}

// TestScenario_Success tests formatting, writing, reopening and reading a file.
func TestScenario_Success(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	require.NoError(t, fs.Format(10))

	data := pattern(600)

	h, err := fs.Open("a", Write)
	require.NoError(t, err)

	n, err := fs.Write(h, data)
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	require.NoError(t, fs.Close(h))

	h2, err := fs.Open("a", Read)
	require.NoError(t, err)

	size, err := fs.Size(h2)
	require.NoError(t, err)
	assert.Equal(t, 600, size)

	buf := make([]byte, 600)
	n, err = fs.Read(h2, buf)
	require.NoError(t, err)
	assert.Equal(t, 600, n)
	assert.Equal(t, data, buf)

	n, err = fs.Read(h2, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, fs.Close(h2))

	fi, err := fs.Stat("a")
	require.NoError(t, err)
	assert.Equal(t, 2, fi.Blocks)
	assert.Equal(t, 600, fi.Size)

	requireConsistent(t, fs)
}

// TestRoundTrip_Success tests write, rewind and read below and above the
// direct block capacity.
func TestRoundTrip_Success(t *testing.T) {
	t.Parallel()

	sizes := []int{1, 511, 512, 513, inode.DirectCount * device.BlockSize, inode.DirectCount*device.BlockSize + 1, 20000}

	for _, size := range sizes {
		_, fs := mounted(t, 200)
		data := pattern(size)

		h, err := fs.Open("file", ReadWrite)
		require.NoError(t, err)

		n, err := fs.Write(h, data)
		require.NoError(t, err)
		require.Equal(t, size, n)

		pos, err := fs.Seek(h, 0, SeekSet)
		require.NoError(t, err)
		require.Equal(t, 0, pos)

		buf := make([]byte, size)
		n, err = fs.Read(h, buf)
		require.NoError(t, err)
		require.Equal(t, size, n)
		require.Equal(t, data, buf, "size %d", size)

		require.NoError(t, fs.Close(h))
		requireConsistent(t, fs)
	}
}

// TestRead_Success_Chunked tests reads that do not align with blocks.
func TestRead_Success_Chunked(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	data := pattern(3000)
	writeFile(t, fs, "a", data)

	h, err := fs.Open("a", Read)
	require.NoError(t, err)

	var got []byte
	buf := make([]byte, 333)
	for {
		n, err := fs.Read(h, buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}

	assert.Equal(t, data, got)
}

// TestSeek_Success tests clamping of every whence.
func TestSeek_Success(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	writeFile(t, fs, "a", pattern(1000))

	h, err := fs.Open("a", Read)
	require.NoError(t, err)

	pos, err := fs.Seek(h, -1000, SeekSet)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = fs.Seek(h, 1000000, SeekSet)
	require.NoError(t, err)
	assert.Equal(t, 1000, pos)

	pos, err = fs.Seek(h, -10, SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, 990, pos)

	pos, err = fs.Seek(h, -1, SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, 999, pos)

	pos, err = fs.Seek(h, 5, SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, 1000, pos)

	pos, err = fs.Seek(h, -5000, SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = fs.Seek(h, math.MaxInt, SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, 1000, pos)

	_, err = fs.Seek(h, 10, SeekSet)
	require.NoError(t, err)
	pos, err = fs.Seek(h, math.MaxInt, SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, 1000, pos)

	pos, err = fs.Seek(h, math.MinInt, SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = fs.Seek(h, math.MinInt, SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	buf := make([]byte, 10)
	_, err = fs.Seek(h, 995, SeekSet)
	require.NoError(t, err)
	n, err := fs.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

// TestCreate_Success tests that creating opens a new, empty file for
// writing.
func TestCreate_Success(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	f, err := fs.CreateFile("new")
	require.NoError(t, err)

	n, err := f.Write(pattern(700))
	require.NoError(t, err)
	assert.Equal(t, 700, n)

	_, err = f.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.NoError(t, f.Close())

	assert.Equal(t, pattern(700), readFile(t, fs, "new"))
}

// TestCreate_Fail_Exists tests that an existing name is never opened by a
// create, whether it is open or not.
func TestCreate_Fail_Exists(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	writeFile(t, fs, "a", pattern(100))

	_, err := fs.Create("a")
	require.ErrorIs(t, err, ErrExists)

	h, err := fs.Open("b", Write)
	require.NoError(t, err)

	_, err = fs.CreateFile("b")
	require.ErrorIs(t, err, ErrExists)

	require.NoError(t, fs.Delete("b"))
	_, err = fs.Create("b")
	require.ErrorIs(t, err, ErrBusy)
	require.NoError(t, fs.Close(h))

	_, err = fs.Create(directory.Root)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = fs.Create("")
	require.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, pattern(100), readFile(t, fs, "a"))
	requireConsistent(t, fs)
}

// TestSeek_Fail_InvalidArgument tests an unknown whence.
func TestSeek_Fail_InvalidArgument(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	h, err := fs.Open("a", Write)
	require.NoError(t, err)

	_, err = fs.Seek(h, 0, Whence(3))
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// TestWrite_Success_Growth tests that overwrites never shrink a file.
func TestWrite_Success_Growth(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	h, err := fs.Open("a", ReadWrite)
	require.NoError(t, err)

	_, err = fs.Write(h, pattern(1000))
	require.NoError(t, err)

	_, err = fs.Seek(h, 100, SeekSet)
	require.NoError(t, err)
	_, err = fs.Write(h, bytes.Repeat([]byte{0xAB}, 200))
	require.NoError(t, err)

	size, err := fs.Size(h)
	require.NoError(t, err)
	assert.Equal(t, 1000, size)

	_, err = fs.Seek(h, 900, SeekSet)
	require.NoError(t, err)
	_, err = fs.Write(h, bytes.Repeat([]byte{0xCD}, 300))
	require.NoError(t, err)

	size, err = fs.Size(h)
	require.NoError(t, err)
	assert.Equal(t, 1200, size)

	want := pattern(1000)
	copy(want[100:300], bytes.Repeat([]byte{0xAB}, 200))
	want = append(want[:900], bytes.Repeat([]byte{0xCD}, 300)...)

	require.NoError(t, fs.Close(h))
	assert.Equal(t, want, readFile(t, fs, "a"))
}

// TestOpen_Success_Append tests that append handles start at the end.
func TestOpen_Success_Append(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	writeFile(t, fs, "log", []byte("hello "))

	h, err := fs.Open("log", Append)
	require.NoError(t, err)

	_, err = fs.Write(h, []byte("world"))
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	assert.Equal(t, []byte("hello world"), readFile(t, fs, "log"))

	h, err = fs.Open("new", Append)
	require.NoError(t, err)

	pos, err := fs.Seek(h, 0, SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

// TestOpen_Fail tests missing names, invalid names and invalid modes.
func TestOpen_Fail(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	_, err := fs.Open("missing", Read)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = fs.Open(directory.Root, Read)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = fs.Open("", Write)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = fs.Open("a-name-that-is-far-too-long-for-a-slot", Write)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = fs.Open("a", Mode(9))
	require.ErrorIs(t, err, ErrInvalidMode)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ParseMode("rw")
	require.ErrorIs(t, err, ErrInvalidMode)
}

// TestOpen_Fail_NoInodes tests creating more files than there are inodes.
func TestOpen_Fail_NoInodes(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	require.NoError(t, fs.Format(3))

	for _, name := range []string{"a", "b"} {
		h, err := fs.Open(name, Write)
		require.NoError(t, err)
		require.NoError(t, fs.Close(h))
	}

	_, err := fs.Open("c", Write)
	require.ErrorIs(t, err, ErrNoInodes)

	require.NoError(t, fs.Delete("a"))

	_, err = fs.Open("c", Write)
	require.NoError(t, err)
}

// TestMode_Fail_PermissionDenied tests reads and writes the mode forbids.
func TestMode_Fail_PermissionDenied(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	writeFile(t, fs, "a", []byte("data"))

	w, err := fs.Open("a", Write)
	require.NoError(t, err)
	_, err = fs.Read(w, make([]byte, 4))
	require.ErrorIs(t, err, ErrPermissionDenied)

	a, err := fs.Open("a", Append)
	require.NoError(t, err)
	_, err = fs.Read(a, make([]byte, 4))
	require.ErrorIs(t, err, ErrPermissionDenied)

	r, err := fs.Open("a", Read)
	require.NoError(t, err)
	_, err = fs.Write(r, []byte("x"))
	require.ErrorIs(t, err, ErrPermissionDenied)
}

// TestBuffer_Fail_InvalidArgument tests reads and writes of empty buffers.
func TestBuffer_Fail_InvalidArgument(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	h, err := fs.Open("a", ReadWrite)
	require.NoError(t, err)

	_, err = fs.Read(h, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = fs.Write(h, []byte{})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

// TestClose_Success_ReferenceCounting tests that a file stays usable until
// its last handle is closed.
func TestClose_Success_ReferenceCounting(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	writeFile(t, fs, "a", []byte("shared"))

	h1, err := fs.Open("a", ReadWrite)
	require.NoError(t, err)
	h2, err := fs.Open("a", Read)
	require.NoError(t, err)

	fi, err := fs.Stat("a")
	require.NoError(t, err)
	assert.Equal(t, 2, fi.Handles)

	require.NoError(t, fs.Close(h1))

	buf := make([]byte, 6)
	n, err := fs.Read(h2, buf)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(buf[:n]))

	require.NoError(t, fs.Close(h2))
	require.ErrorIs(t, fs.Close(h2), ErrInvalidHandle)
	require.ErrorIs(t, fs.Close(h1), ErrInvalidHandle)

	fi, err = fs.Stat("a")
	require.NoError(t, err)
	assert.Equal(t, 0, fi.Handles)
}

// TestHandle_Fail_InvalidHandle tests every operation on stale handles.
func TestHandle_Fail_InvalidHandle(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	h, err := fs.Open("a", ReadWrite)
	require.NoError(t, err)
	require.NoError(t, fs.Close(h))

	// The recycled slot must not revive the old handle.
	h2, err := fs.Open("b", ReadWrite)
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)

	_, err = fs.Read(h, make([]byte, 1))
	require.ErrorIs(t, err, ErrInvalidHandle)

	_, err = fs.Write(h, []byte("x"))
	require.ErrorIs(t, err, ErrInvalidHandle)

	_, err = fs.Seek(h, 0, SeekSet)
	require.ErrorIs(t, err, ErrInvalidHandle)

	_, err = fs.Size(h)
	require.ErrorIs(t, err, ErrInvalidHandle)

	_, err = fs.Size(Handle(12345))
	require.ErrorIs(t, err, ErrInvalidHandle)
}

// TestDelete_Success tests that deleting a closed file frees its blocks.
func TestDelete_Success(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	free := fs.Usage().FreeBlocks

	writeFile(t, fs, "a", pattern(8000))
	assert.Equal(t, free-16-1, fs.Usage().FreeBlocks)

	require.NoError(t, fs.Delete("a"))

	assert.Equal(t, free, fs.Usage().FreeBlocks)

	_, err := fs.Stat("a")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = fs.Open("a", Read)
	require.ErrorIs(t, err, ErrNotFound)

	requireConsistent(t, fs)
}

// TestDelete_Fail tests deleting missing files and the root.
func TestDelete_Fail(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	require.ErrorIs(t, fs.Delete("missing"), ErrNotFound)
	require.ErrorIs(t, fs.Delete(directory.Root), ErrInvalidArgument)
}

// TestDelete_Success_Deferred tests deleting a file that is still open.
func TestDelete_Success_Deferred(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	free := fs.Usage().FreeBlocks

	data := pattern(2000)
	writeFile(t, fs, "a", data)

	h, err := fs.Open("a", ReadWrite)
	require.NoError(t, err)

	require.NoError(t, fs.Delete("a"))
	require.ErrorIs(t, fs.Delete("a"), ErrNotFound)

	fi, err := fs.Stat("a")
	require.NoError(t, err)
	assert.True(t, fi.Deleting)

	_, err = fs.Open("a", Read)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = fs.Open("a", Write)
	require.ErrorIs(t, err, ErrBusy)

	// The open handle keeps working.
	buf := make([]byte, len(data))
	n, err := fs.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, data, buf[:n])

	_, err = fs.Write(h, []byte("more"))
	require.NoError(t, err)

	require.NoError(t, fs.Close(h))

	_, err = fs.Stat("a")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, free, fs.Usage().FreeBlocks)

	h, err = fs.Open("a", Write)
	require.NoError(t, err)

	size, err := fs.Size(h)
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	requireConsistent(t, fs)
}

// TestWrite_Fail_OutOfSpace tests that a write running out of blocks keeps
// the completed prefix.
func TestWrite_Fail_OutOfSpace(t *testing.T) {
	t.Parallel()

	// 16 inodes: 1 inode block, 2 blocks of directory, 16 free blocks.
	_, fs := mounted(t, 20)
	require.NoError(t, fs.Format(16))
	require.Equal(t, 16, fs.Usage().FreeBlocks)

	data := pattern(20 * device.BlockSize)

	h, err := fs.Open("big", ReadWrite)
	require.NoError(t, err)

	// 11 direct blocks, the indirect block and 4 indirect data blocks.
	want := (inode.DirectCount + 4) * device.BlockSize

	n, err := fs.Write(h, data)
	require.ErrorIs(t, err, ErrOutOfSpace)
	assert.Equal(t, want, n)

	size, err := fs.Size(h)
	require.NoError(t, err)
	assert.Equal(t, want, size)
	assert.Equal(t, 0, fs.Usage().FreeBlocks)

	_, err = fs.Seek(h, 0, SeekSet)
	require.NoError(t, err)

	buf := make([]byte, want)
	n, err = fs.Read(h, buf)
	require.NoError(t, err)
	assert.Equal(t, want, n)
	assert.Equal(t, data[:want], buf)

	require.NoError(t, fs.Close(h))

	fi, err := fs.Stat("big")
	require.NoError(t, err)
	assert.Equal(t, want, fi.Size)

	requireConsistent(t, fs)

	require.NoError(t, fs.Delete("big"))
	assert.Equal(t, 16, fs.Usage().FreeBlocks)
}

// TestWrite_Fail_FileTooLarge tests writing past the maximum file size.
func TestWrite_Fail_FileTooLarge(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 400)

	h, err := fs.Open("huge", Write)
	require.NoError(t, err)

	n, err := fs.Write(h, pattern(inode.MaxFileSize+10))
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, inode.MaxFileSize, n)

	size, err := fs.Size(h)
	require.NoError(t, err)
	assert.Equal(t, inode.MaxFileSize, size)

	require.NoError(t, fs.Close(h))
	requireConsistent(t, fs)
}

// TestFormat_Fail tests formatting with bad counts and open files.
func TestFormat_Fail(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)

	require.ErrorIs(t, fs.Format(0), ErrInvalidArgument)
	require.ErrorIs(t, fs.Format(-1), ErrInvalidArgument)
	require.ErrorIs(t, fs.Format(1600), ErrInvalidArgument)
	require.ErrorIs(t, fs.Format(1000), ErrInvalidArgument)

	h, err := fs.Open("a", Write)
	require.NoError(t, err)

	err = fs.Format(10)
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, err, ErrInvalidArgument)

	require.NoError(t, fs.Close(h))
	require.NoError(t, fs.Format(10))

	_, err = fs.Stat("a")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 10, fs.Usage().TotalInodes)
}

// TestCheck_Success tests the allocator invariant over writes and deletes.
func TestCheck_Success(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 300)

	for i, size := range []int{100, 5000, 7000, 1, 512, 12000} {
		name := string(rune('a' + i))
		writeFile(t, fs, name, pattern(size))
		requireConsistent(t, fs)
	}

	for _, name := range []string{"b", "d", "f"} {
		require.NoError(t, fs.Delete(name))
		requireConsistent(t, fs)
	}

	writeFile(t, fs, "g", pattern(9000))
	requireConsistent(t, fs)

	report, err := fs.Check()
	require.NoError(t, err)
	assert.Equal(t, 5, report.Files)
}

// TestCheck_Fail tests that leaked and doubly owned blocks are reported.
func TestCheck_Fail(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	writeFile(t, fs, "a", pattern(1000))

	fs.Lock()
	leaked, err := fs.sb.Allocate()
	fs.Unlock()
	require.NoError(t, err)

	i, _ := fs.dir.Lookup("a")
	in, err := fs.inodes.Get(i)
	require.NoError(t, err)
	owned, _ := in.Direct[0].Get()
	in.Direct[2] = inode.Some(owned)
	require.NoError(t, fs.inodes.Put(i, &in))

	report, err := fs.Check()
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []int{leaked}, report.Leaked)
	assert.Equal(t, []int{owned}, report.Conflicts)
}

// TestMount_Success_Remount tests that files survive a remount.
func TestMount_Success_Remount(t *testing.T) {
	t.Parallel()

	dev, fs := mounted(t, 200)

	files := map[string][]byte{
		"one":   pattern(10),
		"two":   pattern(6000),
		"three": pattern(512),
	}
	for name, data := range files {
		writeFile(t, fs, name, data)
	}
	require.NoError(t, fs.Delete("three"))
	usage := fs.Usage()

	fs2, err := Mount(dev)
	require.NoError(t, err)

	assert.Equal(t, usage, fs2.Usage())
	assert.Equal(t, files["one"], readFile(t, fs2, "one"))
	assert.Equal(t, files["two"], readFile(t, fs2, "two"))

	_, err = fs2.Stat("three")
	require.ErrorIs(t, err, ErrNotFound)

	list, err := fs2.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, fi := range list {
		assert.Equal(t, len(files[fi.Name]), fi.Size, fi.Name)
	}

	requireConsistent(t, fs2)
}

// TestMount_Success_Reclaim tests that incomplete deletions are finished at
// mount.
func TestMount_Success_Reclaim(t *testing.T) {
	t.Parallel()

	dev, fs := mounted(t, 100)
	free := fs.Usage().FreeBlocks

	writeFile(t, fs, "doomed", pattern(7000))
	writeFile(t, fs, "kept", pattern(100))

	i, ok := fs.dir.Lookup("doomed")
	require.True(t, ok)

	in, err := fs.inodes.Get(i)
	require.NoError(t, err)
	in.Flag = inode.Deleting
	require.NoError(t, fs.inodes.Put(i, &in))

	fs2, err := Mount(dev)
	require.NoError(t, err)

	_, err = fs2.Stat("doomed")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, free-1, fs2.Usage().FreeBlocks)
	assert.Equal(t, pattern(100), readFile(t, fs2, "kept"))

	requireConsistent(t, fs2)
}

// TestMount_Fail_Corrupted tests mounting a device with a broken root inode.
func TestMount_Fail_Corrupted(t *testing.T) {
	t.Parallel()

	dev, fs := mounted(t, 100)
	require.NoError(t, fs.inodes.Put(directory.RootInumber, &inode.Inode{}))

	_, err := Mount(dev)
	require.ErrorIs(t, err, ErrCorrupted)
}

// TestMount_Success_ImageFile tests a file system on an image file across
// device reopens.
func TestMount_Success_ImageFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fs.img")

	dev, err := device.OpenFile(path, 100, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err)

	fs, err := Mount(dev)
	require.NoError(t, err)
	writeFile(t, fs, "persisted", pattern(1500))
	require.NoError(t, fs.Sync())
	require.NoError(t, dev.Close())

	dev, err = device.OpenFile(path, 0, &schema.OS{}, &schema.Unix{})
	require.NoError(t, err)
	defer dev.Close()

	fs, err = Mount(dev)
	require.NoError(t, err)
	assert.Equal(t, pattern(1500), readFile(t, fs, "persisted"))
}

// TestFile_Success tests the io adapter with io.Copy.
func TestFile_Success(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 100)
	data := pattern(4000)

	f, err := fs.OpenFile("copy", ReadWrite)
	require.NoError(t, err)
	assert.Equal(t, "copy", f.Name())

	n, err := io.Copy(f, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	pos, err := f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	var out bytes.Buffer
	n, err = io.Copy(&out, f)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, out.Bytes())

	size, err := f.Size()
	require.NoError(t, err)

	handleSize, err := fs.Size(f.Handle())
	require.NoError(t, err)
	assert.Equal(t, size, handleSize)
	assert.Equal(t, len(data), size)

	require.NoError(t, f.Close())
	require.ErrorIs(t, f.Close(), ErrInvalidHandle)
}

// TestConcurrent_Success_DistinctFiles tests writers on distinct files.
func TestConcurrent_Success_DistinctFiles(t *testing.T) {
	t.Parallel()

	_, fs := mounted(t, 300)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			name := string(rune('a' + i))
			data := bytes.Repeat([]byte{byte(i + 1)}, 6000)

			f, err := fs.OpenFile(name, ReadWrite)
			if !assert.NoError(t, err) {
				return
			}
			defer f.Close()

			for off := 0; off < len(data); off += 700 {
				_, err := f.Write(data[off:min(off+700, len(data))])
				assert.NoError(t, err)
			}

			_, err = f.Seek(0, io.SeekStart)
			assert.NoError(t, err)

			got, err := io.ReadAll(f)
			assert.NoError(t, err)
			assert.Equal(t, data, got)
		}()
	}
	wg.Wait()

	files, err := fs.List()
	require.NoError(t, err)
	assert.Len(t, files, 8)

	requireConsistent(t, fs)
}

// TestConcurrent_Success_SharedHandle tests writers sharing one handle.
func TestConcurrent_Success_SharedHandle(t *testing.T) {
	t.Parallel()

	const (
		writers = 8
		writes  = 16
	)

	_, fs := mounted(t, 300)

	h, err := fs.Open("shared", ReadWrite)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			chunk := bytes.Repeat([]byte{byte(i + 1)}, device.BlockSize)
			for range writes {
				n, err := fs.Write(h, chunk)
				assert.NoError(t, err)
				assert.Equal(t, device.BlockSize, n)

				_, err = fs.Size(h)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	size, err := fs.Size(h)
	require.NoError(t, err)
	require.Equal(t, writers*writes*device.BlockSize, size)

	_, err = fs.Seek(h, 0, SeekSet)
	require.NoError(t, err)

	counts := make(map[byte]int)
	buf := make([]byte, device.BlockSize)
	for range writers * writes {
		n, err := fs.Read(h, buf)
		require.NoError(t, err)
		require.Equal(t, device.BlockSize, n)
		require.Equal(t, bytes.Repeat(buf[:1], device.BlockSize), buf)
		counts[buf[0]]++
	}

	for i := range writers {
		assert.Equal(t, writes, counts[byte(i+1)])
	}

	require.NoError(t, fs.Close(h))
	requireConsistent(t, fs)
}
