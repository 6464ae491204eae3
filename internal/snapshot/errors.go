package snapshot

import "errors"

var (
	// ErrCorrupt is returned for a frame that fails to parse or whose
	// checksum does not validate. Restore treats it as a reason to try
	// the previous frame, not as a fatal condition.
	ErrCorrupt = errors.New("snapshot: frame is corrupt or truncated")

	// ErrNoValidFrame is returned by Restore when the sink yields no
	// frame that passes validation, including when the backing file
	// does not exist.
	ErrNoValidFrame = errors.New("snapshot: backing file has no valid frame")
)
