// Command blockfs manages a block file system inside an image file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"syscall"

	"github.com/desertwitch/blockfs/internal/configuration"
)

const (
	stackTraceBufMax = 1 << 24

	exitFailure = 1
	exitUsage   = 2
)

//nolint:gochecknoglobals
var (
	ExitCode = 0
	Version  string

	envFile    = flag.String("env", "", "read the settings from this .env file")
	imagePath  = flag.String("image", "", "path of the image file")
	blockCount = flag.Int("blocks", 0, "number of blocks of a new image")
	workers    = flag.Int("workers", 0, "number of concurrent imports")
	uiEnabled  = flag.Bool("ui", false, "show the progress of imports in a UI")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile = flag.String("memprofile", "", "write memory profile to this file")
)

func setupLogging() *SlogManager {
	logManager := NewSlogManager()
	logManager.AddHandler(terminalLog, newTerminalHandler())
	slog.SetDefault(slog.New(logManager))

	return logManager
}

func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	sigChan2 := make(chan os.Signal, 1)
	signal.Notify(sigChan2, syscall.SIGUSR1)
	go func() {
		for range sigChan2 {
			buf := make([]byte, stackTraceBufMax)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()
}

func usage() {
	out := flag.CommandLine.Output()

	fmt.Fprintf(out, "Usage: blockfs [flags] <command> [args]\n\nCommands:\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(out, "  %-7s %-10s %s\n", name, cmd.usage, cmd.help)
	}

	fmt.Fprintf(out, "\nFlags:\n")
	flag.PrintDefaults()
}

// readSettings reads the configuration, with any flags given taking
// precedence.
func readSettings() (configuration.Settings, error) {
	configHandler := configuration.NewHandler(&configuration.GodotenvProvider{})

	var filenames []string
	if *envFile != "" {
		filenames = append(filenames, *envFile)
	}

	settings, err := configHandler.Read(filenames...)
	if err != nil {
		return settings, fmt.Errorf("failed to read configuration: %w", err)
	}

	if *imagePath != "" {
		settings.Image = *imagePath
	}
	if *blockCount > 0 {
		settings.Blocks = *blockCount
	}
	if *workers > 0 {
		settings.Workers = *workers
	}

	return settings, nil
}

func main() {
	defer func() {
		os.Exit(ExitCode)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flag.Usage = usage
	flag.Parse()

	logManager := setupLogging()
	setupSignalHandlers(cancel)

	if flag.NArg() == 0 {
		flag.Usage()
		ExitCode = exitUsage

		return
	}

	cpuProfiler := newCPUProfiler(ctx, *cpuprofile)
	defer cpuProfiler.Stop()

	allocProfiler := newAllocProfiler(ctx, *memprofile)
	defer allocProfiler.Stop()

	settings, err := readSettings()
	if err != nil {
		slog.Error("Failed to establish the settings.", "err", err)
		ExitCode = exitFailure

		return
	}

	app, err := NewApp(settings, logManager, os.Stdout, *uiEnabled)
	if err != nil {
		slog.Error("Failed to open the image.", "image", settings.Image, "err", err)
		ExitCode = exitFailure

		return
	}

	if err := app.Run(ctx, cancel, flag.Args()); err != nil {
		slog.Error("Failed to run the command.", "err", err)
		ExitCode = exitFailure

		if errors.Is(err, ErrUsage) || errors.Is(err, ErrUnknownCommand) {
			ExitCode = exitUsage
		}
	}

	if err := app.Close(); err != nil {
		slog.Error("Failed to close the image.", "image", settings.Image, "err", err)
		ExitCode = exitFailure
	}
}
