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

// Region is a memory-mapped shared region plus the open file backing it.
// It owns no protocol state of its own; internal/ring wraps it with the
// seqlock discipline.
type Region struct {
	File *os.File
	Mem  []byte

	Header *RegionHeader
}

// NewRegion creates a fresh region of the given size, backed by file,
// and initializes its header for ringCapacity slots and dataCapacity
// bytes of arena. file is truncated to the computed total layout size
// (see CalculateLayout); for a file CreateAnonymous already sized to
// that total, the truncate leaves it unchanged.
func NewRegion(file *os.File, ringCapacity, dataCapacity uint64) (*Region, error) {
	totalSize, ringOffset, dataOffset, err := CalculateLayout(ringCapacity, dataCapacity)
	if err != nil {
		return nil, fmt.Errorf("shm: compute layout: %w", err)
	}

	if err := file.Truncate(int64(totalSize)); err != nil {
		return nil, fmt.Errorf("shm: resize region file: %w", err)
	}

	mem, err := mmapFile(file, int(totalSize))
	if err != nil {
		return nil, fmt.Errorf("shm: mmap region: %w", err)
	}

	hdr := headerAt(mem)
	hdr.SetMagic([8]byte{'S', 'H', 'M', 'F', 'Q', 0, 0, 0})
	hdr.SetVersion(RegionVersion)
	hdr.SetChecksumAlgo(ChecksumAlgoXXH64)
	hdr.SetRingOffset(ringOffset)
	hdr.SetRingCapacity(ringCapacity)
	hdr.SetDataOffset(dataOffset)
	hdr.SetDataCapacity(dataCapacity)
	hdr.SetHighWaterMark(0)
	hdr.SetArenaCursor(0)

	return &Region{File: file, Mem: mem, Header: hdr}, nil
}

// OpenRegion maps an existing, already-initialized region from file and
// validates its header. Used by readers (the snapshot host) and by a
// client re-attaching to a region created by a predecessor.
func OpenRegion(file *os.File) (*Region, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("shm: stat region file: %w", err)
	}
	if info.Size() < RegionHeaderSize {
		return nil, fmt.Errorf("%w: file is %d bytes", ErrRegionTooSmall, info.Size())
	}

	mem, err := mmapFile(file, int(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("shm: mmap region: %w", err)
	}

	hdr := headerAt(mem)
	if err := ValidateHeader(hdr, len(mem)); err != nil {
		_ = unmapMemory(mem)
		return nil, err
	}

	return &Region{File: file, Mem: mem, Header: hdr}, nil
}

// Slot returns a typed view of control-ring slot idx. idx must already
// be masked by the caller (internal/ring owns the mask).
func (r *Region) Slot(idx uint64) *Slot {
	return slotAt(r.Mem, r.Header.RingOffset(), idx)
}

// Arena returns the backing slice for the user-data arena.
func (r *Region) Arena() []byte {
	return arenaAt(r.Mem, r.Header.DataOffset(), r.Header.DataCapacity())
}

// Close unmaps the region and closes its file.
func (r *Region) Close() error {
	var firstErr error
	if r.Mem != nil {
		if err := unmapMemory(r.Mem); err != nil && firstErr == nil {
			firstErr = err
		}
		r.Mem = nil
	}
	if r.File != nil {
		if err := r.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.File = nil
	}
	return firstErr
}
