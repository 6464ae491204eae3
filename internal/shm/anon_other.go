//go:build !linux

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
)

// CreateAnonymous creates a shared-memory-backed file on platforms
// without memfd_create: a regular temp file, unlinked immediately after
// creation. The descriptor stays valid and mappable for as long as it
// is held open, which is all the "anonymous" property requires — no
// process can open it by a second path once unlinked.
func CreateAnonymous(name string, size uint64) (*os.File, error) {
	file, err := os.CreateTemp("", "shmfd-"+name+"-*")
	if err != nil {
		return nil, fmt.Errorf("shm: create anonymous region: %w", err)
	}

	path := file.Name()
	if err := os.Remove(path); err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: unlink anonymous region: %w", err)
	}

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, fmt.Errorf("shm: truncate anonymous region: %w", err)
	}

	return file, nil
}
