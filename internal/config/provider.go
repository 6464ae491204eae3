package config

import "errors"

// ErrReadBytesNotSupported is returned when ReadBytes is called on a
// map provider; use Read() instead.
var ErrReadBytesNotSupported = errors.New("config: ReadBytes not supported by map provider, use Read() instead")

// mapProvider is a koanf provider that loads configuration from a map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// structProvider seeds the defaults layer from a Config without
// relying on reflection over arbitrary structs — the koanf tags below
// mirror Config's own tags exactly.
func structProvider(cfg Config) mapProvider {
	return mapProvider{
		"log_level": cfg.LogLevel,
		"region": map[string]any{
			"name":          cfg.Region.Name,
			"ring_capacity": cfg.Region.RingCapacity,
			"data_capacity": cfg.Region.DataCapacity,
		},
		"snapshot": map[string]any{
			"backing_file": cfg.Snapshot.BackingFile,
			"interval":     cfg.Snapshot.Interval,
			"keep":         cfg.Snapshot.Keep,
		},
	}
}
