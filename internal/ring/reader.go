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

package ring

import (
	"github.com/HeroicKatora/shmfd/internal/shm"
)

// DefaultRetries bounds how many times ReadSlot will re-observe a slot
// that a writer keeps recycling before giving up and reporting Stale.
const DefaultRetries = 8

// Record is a copy of one committed slot's payload and metadata. It
// owns its Payload slice; the backing array is never the live region.
type Record struct {
	Seq     uint64
	Tag     uint32
	Payload []byte
}

// Reader observes a region's control ring without ever blocking the
// writer. Multiple Readers may observe the same region concurrently.
type Reader struct {
	region  *shm.Region
	mask    uint64
	retries int
}

// NewReader wraps region for reading. retries overrides DefaultRetries
// when positive.
func NewReader(region *shm.Region, retries int) *Reader {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Reader{
		region:  region,
		mask:    region.Header.RingCapacity() - 1,
		retries: retries,
	}
}

// ReadSlot performs the seqlock read protocol against ring slot idx:
//
//  1. load seq; if zero or odd, the slot is empty or a write is
//     currently in progress — report no record, immediately, not Stale.
//  2. read offset, length, tag and checksum from the slot.
//  3. bounds-check offset/length against the arena; a violation here
//     can only mean the slot was concurrently recycled out from under
//     the load in step 1, so it also reports no record immediately.
//  4. copy the payload bytes out of the arena into an owned buffer.
//  5. re-load seq; if it changed, the writer recycled the slot during
//     the copy — retry or give up as Stale.
//  6. verify the payload checksum; a mismatch under a stable seq means
//     the copy tore across a wrap-around and is also Stale.
//
// ReadSlot returns (nil, nil) for a slot that is empty or caught
// mid-write, (*Record, nil) for a verified read, and (nil, ErrStale)
// once the retry budget allotted to a torn read (steps 5-6 repeatedly
// racing a fast writer) is spent.
func (r *Reader) ReadSlot(idx uint64) (*Record, error) {
	slot := r.region.Slot(idx & r.mask)
	arena := r.region.Arena()

	for attempt := 0; attempt < r.retries; attempt++ {
		seq1 := slot.Seq()
		if seq1 == 0 || seq1%2 != 0 {
			return nil, nil
		}

		offset := slot.Offset()
		length := slot.Length()
		tag := slot.Tag()
		wantChecksum := slot.Checksum()

		if offset+length > uint64(len(arena)) {
			return nil, nil
		}

		payload := make([]byte, length)
		copy(payload, arena[offset:offset+length])

		seq2 := slot.Seq()
		if seq2 != seq1 {
			continue
		}

		if checksum(r.region.Header.ChecksumAlgo(), payload) != wantChecksum {
			continue
		}

		return &Record{Seq: seq1, Tag: tag, Payload: payload}, nil
	}

	return nil, ErrStale
}

// ScanFunc is invoked once per slot Scan visits. Returning false stops
// the scan early.
type ScanFunc func(idx uint64, rec *Record, err error) bool

// Scan walks every slot in the control ring once, in index order,
// calling fn for each. Slots that were never written invoke fn with a
// nil record and nil error; slots that failed verification invoke fn
// with ErrStale. Scan never blocks on the writer and makes no ordering
// guarantee across slots beyond ring index order — use the returned
// Record.Seq to reconstruct commit order.
func Scan(region *shm.Region, retries int, fn ScanFunc) {
	reader := NewReader(region, retries)
	capacity := region.Header.RingCapacity()

	for idx := uint64(0); idx < capacity; idx++ {
		rec, err := reader.ReadSlot(idx)
		if !fn(idx, rec, err) {
			return
		}
	}
}
