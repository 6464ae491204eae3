// Command shm-restore wraps a child process with a shared-memory
// region it restores from (and periodically snapshots into) an
// on-disk backing file, taking a final snapshot when the child is
// signaled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/HeroicKatora/shmfd/internal/config"
	"github.com/HeroicKatora/shmfd/internal/fdtransport"
	"github.com/HeroicKatora/shmfd/internal/logging"
	"github.com/HeroicKatora/shmfd/internal/ring"
	"github.com/HeroicKatora/shmfd/internal/shm"
	"github.com/HeroicKatora/shmfd/internal/snapshot"
)

func main() {
	app := &cli.App{
		Name:      "shm-restore",
		Usage:     "run a command with a shared-memory region restored from, and periodically snapshotted to, a backing file",
		UsageText: "shm-restore [--config FILE] [--interval DURATION] [--keep N] <backing-file> <command> [args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "optional YAML config file layered beneath flags and environment",
			},
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "interval between periodic snapshots",
				EnvVars: []string{"SHMFD_SNAPSHOT_INTERVAL"},
				Value:   time.Second,
			},
			&cli.IntFlag{
				Name:    "keep",
				Usage:   "number of frames to retain in the backing file",
				EnvVars: []string{"SHMFD_SNAPSHOT_KEEP"},
				Value:   snapshot.DefaultKeep,
			},
			&cli.StringFlag{
				Name:    "region-name",
				Usage:   "name the region descriptor is published under",
				EnvVars: []string{"SHMFD_REGION_NAME"},
				Value:   "shm-fd",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"SHMFD_LOG_LEVEL"},
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:  "preserve-sequence",
				Usage: "stamp restored records with their original sequence numbers instead of renumbering them",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "shm-restore:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	opts := []config.Option{}
	if f := c.String("config"); f != "" {
		opts = append(opts, config.WithConfigFile(f))
	}
	cfg, err := config.NewLoader(opts...).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("region-name") {
		cfg.Region.Name = c.String("region-name")
	}

	args := c.Args().Slice()
	if len(args) < 2 {
		return cli.Exit("a backing file and a command to run are required", 2)
	}
	backingFile := args[0]
	childArgs := args[1:]

	log := logging.New("shm-restore", cfg.LogLevel)

	file, err := fdtransport.Consume(cfg.Region.Name)
	if err != nil {
		return fmt.Errorf("consume published descriptor: %w", err)
	}

	region, err := shm.OpenRegion(file)
	if err != nil {
		return fmt.Errorf("open region: %w", err)
	}
	defer region.Close()

	writer := ring.Open(region)
	sink := snapshot.NewFileSink(backingFile)

	restoreOpts := snapshot.RestoreOptions{PreserveSequence: c.Bool("preserve-sequence")}
	n, err := snapshot.Restore(writer, sink, restoreOpts)
	switch {
	case err == snapshot.ErrNoValidFrame:
		log.Info("no valid snapshot frame found, starting empty", "backing_file", backingFile)
	case err != nil:
		log.Warn("restore failed, starting empty", "backing_file", backingFile, "error", err)
	default:
		log.Info("restored snapshot", "backing_file", backingFile, "records", n)
	}

	if _, lookErr := exec.LookPath(childArgs[0]); lookErr != nil {
		log.Error("command not found", "command", childArgs[0], "error", lookErr)
		os.Exit(127)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := exec.CommandContext(ctx, childArgs[0], childArgs[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		log.Error("exec failed", "command", childArgs[0], "error", err)
		os.Exit(126)
	}

	interval := c.Duration("interval")
	if !c.IsSet("interval") && cfg.Snapshot.Interval != "" {
		d, parseErr := time.ParseDuration(cfg.Snapshot.Interval)
		if parseErr != nil || d <= 0 {
			log.Warn("ignoring invalid snapshot interval from config", "interval", cfg.Snapshot.Interval)
		} else {
			interval = d
		}
	}
	keep := cfg.Snapshot.Keep
	if c.IsSet("keep") {
		keep = c.Int("keep")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

loop:
	for {
		select {
		case <-ticker.C:
			if err := snapshot.Take(region, sink, keep, uint64(time.Now().UnixNano()), log); err != nil {
				log.Warn("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			break loop
		case err := <-done:
			if err := snapshot.Take(region, sink, keep, uint64(time.Now().UnixNano()), log); err != nil {
				log.Warn("final snapshot failed", "error", err)
			}
			return exitLikeChild(err)
		}
	}

	if err := snapshot.Take(region, sink, keep, uint64(time.Now().UnixNano()), log); err != nil {
		log.Warn("final snapshot failed", "error", err)
	}

	err = <-done
	return exitLikeChild(err)
}

func exitLikeChild(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	return fmt.Errorf("wait for child: %w", err)
}
