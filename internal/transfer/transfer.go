// Package transfer copies files between the host and a mounted file system,
// verifying every copy with a BLAKE3 checksum.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/desertwitch/blockfs/internal/filesystem"
	"github.com/desertwitch/blockfs/internal/queue"
)

type fsProvider interface {
	CreateFile(name string) (*filesystem.File, error)
	OpenFile(name string, mode filesystem.Mode) (*filesystem.File, error)
	Delete(name string) error
}

type osProvider interface {
	Open(name string) (*os.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
}

// Job is a single transfer between the host file HostPath and the file Name
// of the file system.
type Job struct {
	HostPath string
	Name     string
}

// Handler is the principal implementation for the transfer services.
type Handler struct {
	fsHandler fsProvider
	osHandler osProvider
}

// NewHandler returns a pointer to a new transfer [Handler].
func NewHandler(fsHandler fsProvider, osHandler osProvider) *Handler {
	return &Handler{
		fsHandler: fsHandler,
		osHandler: osHandler,
	}
}

// Import copies the host file hostPath into the new file name.
func (h *Handler) Import(ctx context.Context, hostPath string, name string) error {
	return h.importFile(ctx, Job{HostPath: hostPath, Name: name}, nil)
}

// Export copies the file name into the new host file hostPath.
func (h *Handler) Export(ctx context.Context, name string, hostPath string) error {
	return h.exportFile(ctx, Job{HostPath: hostPath, Name: name}, nil)
}

// NewImportQueue returns a [queue.Queue] of jobs for [Handler.ImportAll]. The
// total bytes of the queue are the sizes of the host files that could be
// established.
func (h *Handler) NewImportQueue(jobs ...Job) (*queue.Queue[Job], error) {
	seen := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		if _, ok := seen[job.Name]; ok {
			return nil, fmt.Errorf("(transfer-queue) %w: %s", ErrDuplicateName, job.Name)
		}
		seen[job.Name] = struct{}{}
	}

	var total int64
	for _, job := range jobs {
		info, err := h.osHandler.Stat(job.HostPath)
		if err != nil {
			continue
		}
		total += info.Size()
	}

	q := queue.New(jobs...)
	q.AddTotalBytes(total)

	return q, nil
}

// ImportAll imports the jobs of q on up to maxWorkers goroutines. Failed jobs
// are logged and skipped, resulting in an [ErrIncomplete] when the queue is
// drained.
func (h *Handler) ImportAll(ctx context.Context, q *queue.Queue[Job], maxWorkers int) error {
	if err := q.ProcessConc(ctx, maxWorkers, func(ctx context.Context, job Job) queue.Decision {
		if err := h.importFile(ctx, job, q.AddDoneBytes); err != nil {
			slog.Warn("Skipped importing file due to failure",
				"err", err,
				"file", job.HostPath,
				"name", job.Name,
			)

			return queue.DecisionFailed
		}

		slog.Info("Imported:",
			"file", job.HostPath,
			"name", job.Name,
		)

		return queue.DecisionSuccess
	}); err != nil {
		return fmt.Errorf("(transfer-importall) %w", err)
	}

	if failed := len(q.Failed()); failed > 0 {
		return fmt.Errorf("(transfer-importall) %w: %d of %d failed", ErrIncomplete, failed, failed+len(q.Successful()))
	}

	return nil
}

// cleanFileAfterFailure removes the partially imported file name.
func (h *Handler) cleanFileAfterFailure(name string) {
	if err := h.fsHandler.Delete(name); err != nil {
		if !errors.Is(err, filesystem.ErrNotFound) {
			slog.Warn("Failure removing destination file cleaning after failure (skipped)",
				"name", name,
				"err", err,
			)
		}
	}
}

// cleanHostFileAfterFailure removes the partially exported host file path.
func (h *Handler) cleanHostFileAfterFailure(path string) {
	if err := h.osHandler.Remove(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failure removing destination file cleaning after failure (skipped)",
				"path", path,
				"err", err,
			)
		}
	}
}
