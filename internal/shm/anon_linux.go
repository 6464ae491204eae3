//go:build linux

/*
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CreateAnonymous creates a new anonymous shared-memory file of size
// bytes using Linux's memfd_create(2). The returned file has no path in
// any filesystem namespace: it is referenced only by the descriptor
// itself and whatever descriptors are later dup'd or inherited from it.
//
// The file is sealed against further size changes (F_SEAL_GROW |
// F_SEAL_SHRINK) once sized, so a child that inherits the descriptor
// cannot accidentally resize the region out from under a writer that
// has already computed offsets against it.
func CreateAnonymous(name string, size uint64) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("shm: memfd_create: %w", err)
	}

	file := os.NewFile(uintptr(fd), "/memfd:"+name)

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: truncate anonymous region: %w", err)
	}

	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_GROW|unix.F_SEAL_SHRINK); err != nil {
		// Sealing is best-effort: some kernels or filesystems (e.g. an
		// overlay on /dev/shm) reject it. The region is still usable.
	}

	return file, nil
}
