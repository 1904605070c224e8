package filesystem

import (
	"fmt"
	"slices"

	"github.com/desertwitch/blockfs/internal/directory"
	"github.com/desertwitch/blockfs/internal/inode"
)

// FileInfo describes a file of the directory. Size is the length last
// written back to the inode region.
type FileInfo struct {
	Name     string
	Inumber  int
	Size     int
	Blocks   int
	Handles  int
	Deleting bool
}

// Usage describes the space of the file system in blocks and inodes.
type Usage struct {
	TotalBlocks int
	DataBlocks  int
	FreeBlocks  int
	UsedBlocks  int
	TotalInodes int
	UsedInodes  int
}

// Report is the result of [FileSystem.Check]. Every list holds block
// numbers in ascending order.
type Report struct {
	// Files is the number of inodes in use, the root included.
	Files int

	// Leaked are data blocks neither free nor owned by a file.
	Leaked []int

	// Conflicts are data blocks that are owned more than once, or owned
	// and free at the same time.
	Conflicts []int

	// Foreign are blocks outside of the data region that a file claims.
	Foreign []int
}

// OK returns whether the check found no inconsistency.
func (r Report) OK() bool {
	return len(r.Leaked) == 0 && len(r.Conflicts) == 0 && len(r.Foreign) == 0
}

// info returns the [FileInfo] of inode i. The engine lock must be held.
func (fs *FileSystem) info(name string, i int) (FileInfo, error) {
	in, err := fs.inodes.Get(i)
	if err != nil {
		return FileInfo{}, classify(err)
	}

	blocks, err := in.Blocks(fs.dev)
	if err != nil {
		return FileInfo{}, classify(err)
	}

	return FileInfo{
		Name:     name,
		Inumber:  i,
		Size:     in.Length,
		Blocks:   len(blocks),
		Handles:  fs.table.Refs(i),
		Deleting: fs.table.IsDeleting(i),
	}, nil
}

// List returns the files of the directory in inumber order.
func (fs *FileSystem) List() ([]FileInfo, error) {
	fs.Lock()
	defer fs.Unlock()

	entries := fs.dir.Entries()
	infos := make([]FileInfo, 0, len(entries))

	for _, e := range entries {
		fi, err := fs.info(e.Name, e.Inumber)
		if err != nil {
			return nil, fmt.Errorf("(filesystem-list) %w", err)
		}
		infos = append(infos, fi)
	}

	return infos, nil
}

// Stat returns the [FileInfo] of the file name.
func (fs *FileSystem) Stat(name string) (FileInfo, error) {
	fs.Lock()
	defer fs.Unlock()

	i, ok := fs.dir.Lookup(name)
	if !ok || i == directory.RootInumber {
		return FileInfo{}, fmt.Errorf("(filesystem-stat) %w: %q", ErrNotFound, name)
	}

	fi, err := fs.info(name, i)
	if err != nil {
		return FileInfo{}, fmt.Errorf("(filesystem-stat) %w", err)
	}

	return fi, nil
}

// Usage returns the block and inode usage.
func (fs *FileSystem) Usage() Usage {
	fs.Lock()
	defer fs.Unlock()

	data := fs.sb.TotalBlocks() - fs.sb.FirstDataBlock()

	return Usage{
		TotalBlocks: fs.sb.TotalBlocks(),
		DataBlocks:  data,
		FreeBlocks:  fs.sb.FreeCount(),
		UsedBlocks:  data - fs.sb.FreeCount(),
		TotalInodes: fs.sb.TotalInodes(),
		UsedInodes:  fs.dir.Len() + 1,
	}
}

// Check verifies that every data block is either on the free list or owned
// by exactly one inode. Blocks allocated by writes still in progress may be
// reported as leaked.
func (fs *FileSystem) Check() (Report, error) {
	fs.Lock()
	defer fs.Unlock()

	total := fs.sb.TotalBlocks()
	first := fs.sb.FirstDataBlock()
	owners := make([]int, total)

	var report Report

	for i := range fs.inodes.Count() {
		in, err := fs.inodes.Get(i)
		if err != nil {
			return Report{}, fmt.Errorf("(filesystem-check) %w", classify(err))
		}
		if in.Flag == inode.Unused {
			continue
		}
		report.Files++

		blocks, err := in.Blocks(fs.dev)
		if err != nil {
			return Report{}, fmt.Errorf("(filesystem-check) inode %d: %w", i, classify(err))
		}

		for _, b := range blocks {
			if b < first || b >= total {
				report.Foreign = append(report.Foreign, b)

				continue
			}
			owners[b]++
		}
	}

	free, err := fs.sb.FreeBlocks()
	if err != nil {
		return Report{}, fmt.Errorf("(filesystem-check) %w", classify(err))
	}
	for _, b := range free {
		owners[b]++
	}

	for b := first; b < total; b++ {
		switch {
		case owners[b] == 0:
			report.Leaked = append(report.Leaked, b)
		case owners[b] > 1:
			report.Conflicts = append(report.Conflicts, b)
		}
	}

	slices.Sort(report.Foreign)

	return report, nil
}
