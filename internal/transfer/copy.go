package transfer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/desertwitch/blockfs/internal/filesystem"
	"github.com/zeebo/blake3"
)

// tmpSuffix is appended to exported host files until they are verified.
const tmpSuffix = ".blockfs"

//nolint:containedctx
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
		return cr.reader.Read(p)
	}
}

// progressWriter reports the bytes written through it to done.
type progressWriter struct {
	writer io.Writer
	done   func(int64)
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	if pw.done != nil && n > 0 {
		pw.done(int64(n))
	}

	return n, err
}

func (h *Handler) importFile(ctx context.Context, job Job, done func(int64)) error {
	var transferComplete bool

	srcFile, err := h.osHandler.Open(job.HostPath)
	if err != nil {
		return fmt.Errorf("(transfer-import) failed to open source file: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := h.fsHandler.CreateFile(job.Name)
	if errors.Is(err, filesystem.ErrExists) {
		return fmt.Errorf("(transfer-import) %w: %w", ErrExists, err)
	} else if err != nil {
		return fmt.Errorf("(transfer-import) failed to create destination file: %w", err)
	}
	defer func() {
		if !transferComplete {
			h.cleanFileAfterFailure(job.Name)
		}
	}()

	srcHasher := blake3.New()

	ctxReader := &contextReader{
		ctx:    ctx,
		reader: io.TeeReader(srcFile, srcHasher),
	}

	_, err = io.Copy(&progressWriter{writer: dstFile, done: done}, ctxReader)
	closeErr := dstFile.Close()

	if err != nil {
		return fmt.Errorf("(transfer-import) failed to copy file: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("(transfer-import) failed to close destination file: %w", closeErr)
	}

	dstChecksum, err := h.checksum(job.Name)
	if err != nil {
		return fmt.Errorf("(transfer-import) failed to verify destination file: %w", err)
	}

	srcChecksum := hex.EncodeToString(srcHasher.Sum(nil))
	if srcChecksum != dstChecksum {
		return fmt.Errorf("(transfer-import) %w: %s (src) != %s (dst)", ErrHashMismatch, srcChecksum, dstChecksum)
	}

	transferComplete = true

	return nil
}

// checksum reads back the file name and returns its hex-encoded BLAKE3 sum.
func (h *Handler) checksum(name string) (string, error) {
	f, err := h.fsHandler.OpenFile(name, filesystem.Read)
	if err != nil {
		return "", fmt.Errorf("(transfer-checksum) %w", err)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("(transfer-checksum) %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (h *Handler) exportFile(ctx context.Context, job Job, done func(int64)) error {
	var transferComplete bool

	srcFile, err := h.fsHandler.OpenFile(job.Name, filesystem.Read)
	if err != nil {
		return fmt.Errorf("(transfer-export) failed to open source file: %w", err)
	}
	defer srcFile.Close()

	if _, err := h.osHandler.Stat(job.HostPath); err == nil {
		return fmt.Errorf("(transfer-export) %w: %s", ErrExists, job.HostPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("(transfer-export) failed to check destination existence: %w", err)
	}

	tmpPath := job.HostPath + tmpSuffix

	dstFile, err := h.osHandler.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644) //nolint:mnd
	if err != nil {
		return fmt.Errorf("(transfer-export) failed to open destination file %s: %w", tmpPath, err)
	}
	defer func() {
		if !transferComplete {
			h.cleanHostFileAfterFailure(tmpPath)
		}
	}()
	defer dstFile.Close()

	srcHasher := blake3.New()
	dstHasher := blake3.New()

	ctxReader := &contextReader{
		ctx:    ctx,
		reader: io.TeeReader(srcFile, srcHasher),
	}
	multiWriter := io.MultiWriter(&progressWriter{writer: dstFile, done: done}, dstHasher)

	if _, err := io.Copy(multiWriter, ctxReader); err != nil {
		return fmt.Errorf("(transfer-export) failed to copy file: %w", err)
	}

	if err := dstFile.Sync(); err != nil {
		return fmt.Errorf("(transfer-export) failed to sync destination file: %w", err)
	}

	srcChecksum := hex.EncodeToString(srcHasher.Sum(nil))
	dstChecksum := hex.EncodeToString(dstHasher.Sum(nil))

	if srcChecksum != dstChecksum {
		return fmt.Errorf("(transfer-export) %w: %s (src) != %s (dst)", ErrHashMismatch, srcChecksum, dstChecksum)
	}

	if err := h.osHandler.Rename(tmpPath, job.HostPath); err != nil {
		return fmt.Errorf("(transfer-export) failed to rename temporary file to destination file: %w", err)
	}

	transferComplete = true

	return nil
}
