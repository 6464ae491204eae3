package fdtransport

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// listenFDBase is fd 3 in the child, the first descriptor after stdin,
// stdout and stderr — the convention systemd's sd_listen_fds expects
// and the convention exec.Cmd.ExtraFiles follows automatically.
const listenFDBase = 3

// Publish arranges for cmd's child process to inherit files, appending
// them to cmd.ExtraFiles and setting LISTEN_FDS and LISTEN_FDNAMES in
// cmd.Env so the child can recover them by name via Consume. Any
// inherited LISTEN_PID is removed and none is set. Publish must be
// called before cmd.Start.
//
// names must have the same length as files; an empty name is valid and
// leaves an empty entry at that position in LISTEN_FDNAMES's
// colon-separated list.
func Publish(cmd *exec.Cmd, names []string, files ...*os.File) error {
	if len(names) != len(files) {
		return fmt.Errorf("fdtransport: %d names for %d files", len(names), len(files))
	}

	base := cmd.Env
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+3)
	for _, kv := range base {
		if strings.HasPrefix(kv, "LISTEN_FDS=") ||
			strings.HasPrefix(kv, "LISTEN_PID=") ||
			strings.HasPrefix(kv, "LISTEN_FDNAMES=") {
			continue
		}
		env = append(env, kv)
	}

	startIndex := len(cmd.ExtraFiles)
	cmd.ExtraFiles = append(cmd.ExtraFiles, files...)

	env = append(env,
		"LISTEN_FDS="+strconv.Itoa(startIndex+len(files)),
		// LISTEN_PID is resolved against the child's own PID once it
		// starts; systemd's convention is to stamp the child's pid, but
		// that isn't known until after exec.Cmd.Start returns, so we
		// instead rely on the child trusting its environment unconditionally
		// when LISTEN_PID is absent — see Consume.
		"LISTEN_FDNAMES="+strings.Join(names, ":"),
	)
	cmd.Env = env

	return nil
}
