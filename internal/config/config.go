// Package config loads layered configuration for the shmfd binaries
// using Koanf, with priority file < environment < explicit overrides
// (typically CLI flags, applied by the caller after Load returns).
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix recognized by Load.
const DefaultEnvPrefix = "SHMFD_"

// Region holds the parameters a writer uses to size a fresh region.
type Region struct {
	Name         string `koanf:"name"`
	RingCapacity uint64 `koanf:"ring_capacity"`
	DataCapacity uint64 `koanf:"data_capacity"`
}

// Snapshot holds the parameters the snapshot/restore host runs with.
type Snapshot struct {
	BackingFile string `koanf:"backing_file"`
	Interval    string `koanf:"interval"`
	Keep        int    `koanf:"keep"`
}

// Config is the full configuration surface shared by shmfd and
// shm-restore; either binary only reads the section it needs.
type Config struct {
	LogLevel string   `koanf:"log_level"`
	Region   Region   `koanf:"region"`
	Snapshot Snapshot `koanf:"snapshot"`
}

// Defaults returns the configuration a fresh process should fall back
// to before any file, environment or flag override is applied.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Region: Region{
			Name:         "shm-fd",
			RingCapacity: 256,
			DataCapacity: 1 << 20,
		},
		Snapshot: Snapshot{
			Interval: "1s",
			Keep:     2,
		},
	}
}

// Loader layers configuration sources on top of a Koanf instance.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix overrides the default environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file Load reads before the environment.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// NewLoader constructs a Loader with the given options applied over
// DefaultEnvPrefix.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves file and environment sources on top of Defaults and
// unmarshals the result into a Config.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if err := l.k.Load(structProvider(cfg), nil); err != nil {
		return cfg, fmt.Errorf("config: load defaults: %w", err)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("config: load file %s: %w", l.filePath, err)
		}
	}

	envTransform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		// Only the underscore after a section name nests; the rest belong
		// to snake_case keys (SHMFD_REGION_RING_CAPACITY -> region.ring_capacity).
		for _, section := range []string{"region", "snapshot"} {
			if strings.HasPrefix(s, section+"_") {
				return section + "." + strings.TrimPrefix(s, section+"_")
			}
		}
		return s
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", envTransform), nil); err != nil {
		return cfg, fmt.Errorf("config: load env: %w", err)
	}

	if err := l.k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Koanf exposes the underlying instance for callers that want to
// layer CLI flag values on top (urfave/cli flag values are applied by
// the caller via Koanf.Set or a confmap provider, after Load).
func (l *Loader) Koanf() *koanf.Koanf { return l.k }
