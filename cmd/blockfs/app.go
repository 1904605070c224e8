package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/desertwitch/blockfs/internal/configuration"
	"github.com/desertwitch/blockfs/internal/device"
	"github.com/desertwitch/blockfs/internal/filesystem"
	"github.com/desertwitch/blockfs/internal/schema"
	"github.com/desertwitch/blockfs/internal/transfer"
)

const (
	// uiPollInterval is the interval at which the readiness of the user
	// interface is polled.
	uiPollInterval = 10 * time.Millisecond
)

// App is the command line application operating on one mounted image.
type App struct {
	settings configuration.Settings

	dev             *device.File
	fsHandler       *filesystem.FileSystem
	transferHandler *transfer.Handler
	logManager      *SlogManager

	out       io.Writer
	uiEnabled bool
}

// NewApp opens and mounts the image of settings. The returned [App] needs to
// be closed with [App.Close].
func NewApp(settings configuration.Settings, logManager *SlogManager, out io.Writer, uiEnabled bool) (*App, error) {
	osProvider := &schema.OS{}

	dev, err := device.OpenFile(settings.Image, settings.Blocks, osProvider, &schema.Unix{})
	if err != nil {
		return nil, fmt.Errorf("(app-new) %w", err)
	}

	fsHandler, err := filesystem.Mount(dev, filesystem.WithInodes(settings.Inodes))
	if err != nil {
		dev.Close()

		return nil, fmt.Errorf("(app-new) %w", err)
	}

	return &App{
		settings:        settings,
		dev:             dev,
		fsHandler:       fsHandler,
		transferHandler: transfer.NewHandler(fsHandler, osProvider),
		logManager:      logManager,
		out:             out,
		uiEnabled:       uiEnabled,
	}, nil
}

// Close flushes and closes the image.
func (app *App) Close() error {
	syncErr := app.fsHandler.Sync()
	closeErr := app.dev.Close()

	if err := errors.Join(syncErr, closeErr); err != nil {
		return fmt.Errorf("(app-close) %w", err)
	}

	return nil
}

// Run runs the command in args[0] with the remaining args. ctrl+c within the
// user interface calls cancel.
func (app *App) Run(ctx context.Context, cancel context.CancelFunc, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("(app-run) %w: no command", ErrUsage)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("(app-run) %w: %s", ErrUnknownCommand, args[0])
	}

	if cmd.args >= 0 && len(args)-1 != cmd.args || cmd.args < 0 && len(args) < 2 {
		return fmt.Errorf("(app-run) %w: %s %s", ErrUsage, args[0], cmd.usage)
	}

	slog.Debug("Running command:", "cmd", args[0], "image", app.settings.Image)

	if err := cmd.run(ctx, cancel, app, args[1:]); err != nil {
		return fmt.Errorf("(app-run) %s: %w", args[0], err)
	}

	return nil
}
