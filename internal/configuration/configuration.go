// Package configuration reads the settings of the command line tool from
// .env-style files.
package configuration

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"strconv"
)

const (
	// KeyImage is the key of [Settings.Image].
	KeyImage = "BLOCKFS_IMAGE"

	// KeyBlocks is the key of [Settings.Blocks].
	KeyBlocks = "BLOCKFS_BLOCKS"

	// KeyInodes is the key of [Settings.Inodes].
	KeyInodes = "BLOCKFS_INODES"

	// KeyWorkers is the key of [Settings.Workers].
	KeyWorkers = "BLOCKFS_WORKERS"

	// Defaults of [Settings].
	DefaultImage  = "blockfs.img"
	DefaultBlocks = 1000
	DefaultInodes = 64
)

type genericConfigProvider interface {
	Read(filenames ...string) (envMap map[string]string, err error)
}

// Settings is the configuration of the command line tool.
type Settings struct {
	// Image is the path of the image file.
	Image string

	// Blocks is the block count of a newly created image.
	Blocks int

	// Inodes is the inode count of a newly formatted image.
	Inodes int

	// Workers is the number of concurrent transfers.
	Workers int
}

// Defaults returns the [Settings] used for keys that are not configured.
func Defaults() Settings {
	return Settings{
		Image:   DefaultImage,
		Blocks:  DefaultBlocks,
		Inodes:  DefaultInodes,
		Workers: runtime.NumCPU(),
	}
}

// Handler is the principal implementation for reading [Settings].
type Handler struct {
	genericReader genericConfigProvider
}

// NewHandler returns a pointer to a new configuration [Handler].
func NewHandler(genericReader genericConfigProvider) *Handler {
	return &Handler{
		genericReader: genericReader,
	}
}

// Read reads the [Settings] from the given files. Files that do not exist
// yield the defaults, malformed values are replaced with their default.
func (c *Handler) Read(filenames ...string) (Settings, error) {
	settings := Defaults()

	envMap, err := c.genericReader.Read(filenames...)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	} else if err != nil {
		return settings, fmt.Errorf("(config-read) %w", err)
	}

	if v := c.mapKeyToString(envMap, KeyImage); v != "" {
		settings.Image = v
	}
	settings.Blocks = c.mapKeyToInt(envMap, KeyBlocks, settings.Blocks)
	settings.Inodes = c.mapKeyToInt(envMap, KeyInodes, settings.Inodes)
	settings.Workers = c.mapKeyToInt(envMap, KeyWorkers, settings.Workers)

	return settings, nil
}

func (c *Handler) mapKeyToString(envMap map[string]string, key string) string {
	if value, exists := envMap[key]; exists {
		return value
	}

	return ""
}

func (c *Handler) mapKeyToInt(envMap map[string]string, key string, def int) int {
	value := c.mapKeyToString(envMap, key)
	if value == "" {
		return def
	}

	intValue, err := strconv.Atoi(value)
	if err != nil || intValue <= 0 {
		slog.Warn("Ignored malformed configuration value",
			"key", key,
			"value", value,
			"default", def,
		)

		return def
	}

	return intValue
}
