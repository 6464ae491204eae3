// Command shmfd creates an anonymous shared-memory region, publishes
// its descriptor to a child process the way systemd's socket
// activation does, and waits for the child to exit, mirroring its
// exit code.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/urfave/cli/v2"

	"github.com/HeroicKatora/shmfd/internal/config"
	"github.com/HeroicKatora/shmfd/internal/fdtransport"
	"github.com/HeroicKatora/shmfd/internal/logging"
	"github.com/HeroicKatora/shmfd/internal/ring"
	"github.com/HeroicKatora/shmfd/internal/shm"
)

func main() {
	app := &cli.App{
		Name:      "shmfd",
		Usage:     "run a command with an anonymous shared-memory region published as a listen descriptor",
		UsageText: "shmfd [--size BYTES] [--name NAME] [--log-level LEVEL] <command> [args...]",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:    "size",
				Usage:   "size in bytes of the shared-memory region's user-data arena",
				EnvVars: []string{"SHMFD_REGION_DATA_CAPACITY"},
				Value:   1 << 20,
			},
			&cli.Uint64Flag{
				Name:    "ring-capacity",
				Usage:   "number of control-ring slots, must be a power of two",
				EnvVars: []string{"SHMFD_REGION_RING_CAPACITY"},
				Value:   256,
			},
			&cli.StringFlag{
				Name:    "name",
				Usage:   "name the region is published under in LISTEN_FDNAMES",
				EnvVars: []string{"SHMFD_REGION_NAME"},
				Value:   "shm-fd",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "trace, debug, info, warn or error",
				EnvVars: []string{"SHMFD_LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "optional YAML config file layered beneath flags and environment",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "shmfd:", err)
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
	if c.IsSet("size") {
		cfg.Region.DataCapacity = c.Uint64("size")
	}
	if c.IsSet("ring-capacity") {
		cfg.Region.RingCapacity = c.Uint64("ring-capacity")
	}
	if c.IsSet("name") {
		cfg.Region.Name = c.String("name")
	}

	log := logging.New("shmfd", cfg.LogLevel)

	args := c.Args().Slice()
	if len(args) == 0 {
		return cli.Exit("a command to run is required", 2)
	}

	totalSize, _, _, err := shm.CalculateLayout(cfg.Region.RingCapacity, cfg.Region.DataCapacity)
	if err != nil {
		return fmt.Errorf("compute region layout: %w", err)
	}

	// Size the memfd before CreateAnonymous seals it against growing or
	// shrinking further; NewRegion's own truncate below is then a no-op.
	file, err := shm.CreateAnonymous(cfg.Region.Name, totalSize)
	if err != nil {
		return fmt.Errorf("create anonymous region: %w", err)
	}
	defer file.Close()

	region, err := shm.NewRegion(file, cfg.Region.RingCapacity, cfg.Region.DataCapacity)
	if err != nil {
		return fmt.Errorf("initialize region: %w", err)
	}
	defer region.Close()

	if _, err := ring.Initialize(region, cfg.Region.RingCapacity, cfg.Region.DataCapacity); err != nil {
		return fmt.Errorf("initialize ring: %w", err)
	}

	log.Info("region ready",
		"name", cfg.Region.Name,
		"ring_capacity", cfg.Region.RingCapacity,
		"data_capacity", cfg.Region.DataCapacity,
	)

	if _, lookErr := exec.LookPath(args[0]); lookErr != nil {
		log.Error("command not found", "command", args[0], "error", lookErr)
		os.Exit(127)
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := fdtransport.Publish(cmd, []string{cfg.Region.Name}, file); err != nil {
		return fmt.Errorf("publish descriptor: %w", err)
	}

	if err := cmd.Start(); err != nil {
		log.Error("exec failed", "command", args[0], "error", err)
		os.Exit(126)
	}

	err = cmd.Wait()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}

	return fmt.Errorf("wait for child: %w", err)
}
