package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertwitch/blockfs/internal/device"
	"github.com/desertwitch/blockfs/internal/filesystem"
	"github.com/desertwitch/blockfs/internal/transfer"
	"github.com/desertwitch/blockfs/internal/ui"
	"github.com/dustin/go-humanize"
)

type command struct {
	// args is the exact number of arguments, or -1 for one or more.
	args  int
	usage string
	help  string
	run   func(ctx context.Context, cancel context.CancelFunc, app *App, args []string) error
}

//nolint:gochecknoglobals
var commands = map[string]command{
	"format": {1, "N", "format the image for N files, the root directory included", runFormat},
	"ls":     {0, "", "list the files", runList},
	"stat":   {1, "NAME", "describe a file", runStat},
	"put":    {-1, "HOST...", "import host files under their base names", runPut},
	"get":    {2, "NAME HOST", "export a file to a new host file", runGet},
	"cat":    {1, "NAME", "write a file to standard output", runCat},
	"rm":     {1, "NAME", "delete a file", runRemove},
	"check":  {0, "", "verify the block accounting", runCheck},
	"df":     {0, "", "show the space usage", runUsage},
}

func bytesOf(n int) string {
	return humanize.Bytes(uint64(max(n, 0))) //nolint:gosec
}

func runFormat(_ context.Context, _ context.CancelFunc, app *App, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	if err := app.fsHandler.Format(n); err != nil {
		return err //nolint:wrapcheck
	}

	u := app.fsHandler.Usage()
	fmt.Fprintf(app.out, "Formatted %s for %d files (%s free)\n",
		app.settings.Image, u.TotalInodes, bytesOf(u.FreeBlocks*device.BlockSize))

	return nil
}

func runList(_ context.Context, _ context.CancelFunc, app *App, _ []string) error {
	infos, err := app.fsHandler.List()
	if err != nil {
		return err //nolint:wrapcheck
	}

	slices.SortFunc(infos, func(a, b filesystem.FileInfo) int {
		return strings.Compare(a.Name, b.Name)
	})

	tw := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', 0) //nolint:mnd
	fmt.Fprintln(tw, "NAME\tSIZE\tBLOCKS\tINODE")

	for _, fi := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", fi.Name, bytesOf(fi.Size), fi.Blocks, fi.Inumber)
	}

	return tw.Flush() //nolint:wrapcheck
}

func runStat(_ context.Context, _ context.CancelFunc, app *App, args []string) error {
	fi, err := app.fsHandler.Stat(args[0])
	if err != nil {
		return err //nolint:wrapcheck
	}

	tw := tabwriter.NewWriter(app.out, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", fi.Name)
	fmt.Fprintf(tw, "Inode:\t%d\n", fi.Inumber)
	fmt.Fprintf(tw, "Size:\t%d (%s)\n", fi.Size, bytesOf(fi.Size))
	fmt.Fprintf(tw, "Blocks:\t%d\n", fi.Blocks)
	fmt.Fprintf(tw, "Handles:\t%d\n", fi.Handles)

	return tw.Flush() //nolint:wrapcheck
}

func runPut(ctx context.Context, cancel context.CancelFunc, app *App, args []string) error {
	jobs := make([]transfer.Job, 0, len(args))
	for _, path := range args {
		jobs = append(jobs, transfer.Job{HostPath: path, Name: filepath.Base(path)})
	}

	q, err := app.transferHandler.NewImportQueue(jobs...)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if !app.uiEnabled {
		return app.transferHandler.ImportAll(ctx, q, app.settings.Workers) //nolint:wrapcheck
	}

	uiHandler := ui.NewHandler(ctx, cancel, "Importing into "+app.settings.Image, q)
	uiDone := make(chan struct{})

	go func() {
		defer close(uiDone)

		if err := uiHandler.Launch(); err != nil {
			slog.Error("UI failure: falling back to terminal.", "err", err)
		}
	}()

	if waitForUI(ctx, uiHandler) {
		slog.Debug("Redirecting logs into the UI")
		app.logManager.AddHandler(uiLog, newTintHandler(uiHandler.LogWriter, slog.LevelInfo))
		app.logManager.RemoveHandler(terminalLog)
	}

	err = app.transferHandler.ImportAll(ctx, q, app.settings.Workers)

	if !uiHandler.Failed.Load() {
		uiHandler.Quit()
	}
	<-uiDone

	app.logManager.AddHandler(terminalLog, newTerminalHandler())
	app.logManager.RemoveHandler(uiLog)

	return err //nolint:wrapcheck
}

// waitForUI waits until the user interface is ready to receive logs. It
// returns false if the user interface failed or the context ended first.
func waitForUI(ctx context.Context, uiHandler *ui.Handler) bool {
	ticker := time.NewTicker(uiPollInterval)
	defer ticker.Stop()

	for {
		if uiHandler.Ready.Load() {
			return true
		}
		if uiHandler.Failed.Load() {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func runGet(ctx context.Context, _ context.CancelFunc, app *App, args []string) error {
	return app.transferHandler.Export(ctx, args[0], args[1]) //nolint:wrapcheck
}

func runCat(_ context.Context, _ context.CancelFunc, app *App, args []string) error {
	f, err := app.fsHandler.OpenFile(args[0], filesystem.Read)
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer f.Close()

	if _, err := io.Copy(app.out, f); err != nil {
		return fmt.Errorf("failed to print file: %w", err)
	}

	return nil
}

func runRemove(_ context.Context, _ context.CancelFunc, app *App, args []string) error {
	return app.fsHandler.Delete(args[0]) //nolint:wrapcheck
}

func runCheck(_ context.Context, _ context.CancelFunc, app *App, _ []string) error {
	report, err := app.fsHandler.Check()
	if err != nil {
		return err //nolint:wrapcheck
	}

	fmt.Fprintf(app.out, "Files: %d\n", report.Files)

	if report.OK() {
		fmt.Fprintln(app.out, "No inconsistencies found")

		return nil
	}

	fmt.Fprintf(app.out, "Leaked: %v\nConflicts: %v\nForeign: %v\n", report.Leaked, report.Conflicts, report.Foreign)

	return ErrInconsistent
}

func runUsage(_ context.Context, _ context.CancelFunc, app *App, _ []string) error {
	u := app.fsHandler.Usage()

	tw := tabwriter.NewWriter(app.out, 0, 0, 2, ' ', tabwriter.AlignRight) //nolint:mnd
	fmt.Fprintln(tw, "\tTOTAL\tUSED\tFREE\t")
	fmt.Fprintf(tw, "BLOCKS\t%d\t%d\t%d\t\n", u.DataBlocks, u.UsedBlocks, u.FreeBlocks)
	fmt.Fprintf(tw, "BYTES\t%s\t%s\t%s\t\n",
		bytesOf(u.DataBlocks*device.BlockSize),
		bytesOf(u.UsedBlocks*device.BlockSize),
		bytesOf(u.FreeBlocks*device.BlockSize))
	fmt.Fprintf(tw, "INODES\t%d\t%d\t%d\t\n", u.TotalInodes, u.UsedInodes, u.TotalInodes-u.UsedInodes)

	return tw.Flush() //nolint:wrapcheck
}
