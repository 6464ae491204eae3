package fdtransport

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

var (
	consumeOnce sync.Once
	consumed    []*os.File
	consumeErr  error
)

// Consume parses LISTEN_FDS / LISTEN_PID / LISTEN_FDNAMES from the
// process environment and returns the descriptor published under name.
// The environment is only ever parsed once per process; subsequent
// calls reuse the first parse's result, so each descriptor is only
// ever handed out to the first caller that asks for its name.
//
// If LISTEN_PID is set, it must match os.Getpid — inherited
// environments from an intermediate exec that itself consumed its own
// descriptors are rejected rather than silently reused.
func Consume(name string) (*os.File, error) {
	consumeOnce.Do(func() {
		consumed, consumeErr = parseEnv()
	})
	if consumeErr != nil {
		return nil, consumeErr
	}

	names := strings.Split(os.Getenv("LISTEN_FDNAMES"), ":")
	for i, n := range names {
		if n == name && i < len(consumed) {
			f := consumed[i]
			if f == nil {
				return nil, ErrAlreadyConsumed
			}
			consumed[i] = nil
			return f, nil
		}
	}
	return nil, ErrNameMismatch
}

func parseEnv() ([]*os.File, error) {
	raw, ok := os.LookupEnv("LISTEN_FDS")
	if !ok {
		return nil, ErrMissingEnv
	}

	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return nil, ErrMalformedCount
	}

	if pidRaw, ok := os.LookupEnv("LISTEN_PID"); ok {
		pid, err := strconv.Atoi(pidRaw)
		if err != nil || pid != os.Getpid() {
			return nil, ErrPIDMismatch
		}
	}

	files := make([]*os.File, count)
	for i := 0; i < count; i++ {
		fd := listenFDBase + i
		// os.NewFile never fails on a positive fd regardless of whether
		// it is actually open; F_GETFD is what actually tells us.
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			return nil, ErrDescriptorInvalid
		}
		files[i] = os.NewFile(uintptr(fd), "listenfd-"+strconv.Itoa(i))
	}
	return files, nil
}
