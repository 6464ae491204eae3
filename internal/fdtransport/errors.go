package fdtransport

import "errors"

var (
	// ErrMissingEnv is returned by Consume when LISTEN_FDS is not set —
	// the process was not launched by Publish (or a compatible
	// socket-activation supervisor).
	ErrMissingEnv = errors.New("fdtransport: LISTEN_FDS is not set")

	// ErrMalformedCount is returned when LISTEN_FDS is set but is not a
	// valid non-negative integer.
	ErrMalformedCount = errors.New("fdtransport: LISTEN_FDS is not a valid integer")

	// ErrPIDMismatch is returned when LISTEN_PID is set but does not
	// match the current process — the environment was inherited past
	// an intermediate exec that should have consumed or cleared it.
	ErrPIDMismatch = errors.New("fdtransport: LISTEN_PID does not match the current process")

	// ErrNameMismatch is returned by Consume when the requested name is
	// not present in LISTEN_FDNAMES.
	ErrNameMismatch = errors.New("fdtransport: no descriptor published under that name")

	// ErrDescriptorInvalid is returned when the underlying descriptor at
	// the expected index is not open or not usable as a file.
	ErrDescriptorInvalid = errors.New("fdtransport: descriptor is not valid")

	// ErrAlreadyConsumed is returned by Consume when the descriptor
	// published under the requested name was already handed out by an
	// earlier call in this process; each descriptor is handed out once.
	ErrAlreadyConsumed = errors.New("fdtransport: descriptors already consumed")
)
