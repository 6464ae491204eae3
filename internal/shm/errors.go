package shm

import "errors"

var (
	// ErrVersionMismatch is returned when a mapped region's header
	// version does not match RegionVersion.
	ErrVersionMismatch = errors.New("shm: region version mismatch")

	// ErrRegionTooSmall is returned when a mapped region is smaller than
	// its own header claims it should be.
	ErrRegionTooSmall = errors.New("shm: region too small for its header")

	// ErrCorrupt is returned for any other header inconsistency (bad
	// magic, offsets that do not match the computed layout).
	ErrCorrupt = errors.New("shm: region header is corrupt")
)
