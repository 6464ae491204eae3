// Package logging constructs the structured logger shared by the
// shmfd and shm-restore binaries, built on hashicorp/go-hclog.
package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// New builds a logger named name at the given level (any string
// hclog.LevelFromString accepts: "trace", "debug", "info", "warn",
// "error"; an unrecognized level falls back to "info"), writing JSON
// lines to os.Stderr.
func New(name, level string) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      lvl,
		Output:     os.Stderr,
		JSONFormat: true,
	})
}
