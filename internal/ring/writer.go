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
	"fmt"

	"github.com/HeroicKatora/shmfd/internal/shm"
)

// Writer is the single committing writer over a shared region. Only one
// Writer may be active against a given region at a time; the protocol
// does not protect against concurrent writers.
type Writer struct {
	region *shm.Region
	mask   uint64 // ringCapacity - 1, ring capacity is always a power of two

	// gen is the 1-based generation counter of the next record to
	// reserve. Slot index and sequence number are both derived from
	// it: idx = (gen-1) & mask, seq = 2*gen. Seq is never zero, since
	// zero is reserved to mean "slot never written".
	gen uint64
}

// Handle is an in-progress reservation. It is valid from Reserve until
// the matching Commit or Abort; using it afterwards is a programming
// error.
type Handle struct {
	slot     *shm.Slot
	offset   uint64
	length   uint64
	tag      uint32
	seq      uint64
	payload  []byte
	done     bool
}

// Initialize zeroes the control ring of region, resets the header's
// high-water mark and arena cursor, and records ringCapacity slots /
// dataCapacity bytes of arena in the header, returning a Writer ready
// to Reserve into it. Magic, version, checksum algorithm and offsets
// are left as NewRegion wrote them.
//
// Re-initializing a region while any other party (a reader or another
// writer) is mapped against it is a caller error: Initialize must only
// ever run before a descriptor is inherited, or during the restore
// procedure's priming step with nothing else attached.
func Initialize(region *shm.Region, ringCapacity, dataCapacity uint64) (*Writer, error) {
	if !shm.IsPowerOfTwo(ringCapacity) {
		return nil, fmt.Errorf("ring: capacity %d is not a power of two", ringCapacity)
	}

	region.Header.SetRingCapacity(ringCapacity)
	region.Header.SetDataCapacity(dataCapacity)
	region.Header.SetHighWaterMark(0)
	region.Header.SetArenaCursor(0)

	for i := uint64(0); i < ringCapacity; i++ {
		s := region.Slot(i)
		s.SetSeq(0)
		s.SetOffset(0)
		s.SetLength(0)
		s.SetTag(0)
		s.SetChecksum(0)
	}

	return &Writer{region: region, mask: ringCapacity - 1, gen: 1}, nil
}

// Open wraps an already-initialized region (one whose header has passed
// shm.ValidateHeader) with a Writer that continues from the region's
// current high-water mark — the normal case of a client re-execing and
// picking up where its predecessor left off.
func Open(region *shm.Region) *Writer {
	cap := region.Header.RingCapacity()
	hwm := region.Header.HighWaterMark()
	gen := uint64(1)
	if hwm != 0 {
		gen = hwm/2 + 1
	}
	return &Writer{region: region, mask: cap - 1, gen: gen}
}

// SkipGenerationTo fast-forwards the writer's internal generation
// counter so the next Reserve continues after gen, without touching
// the ring or arena. Used after a PreserveSequence restore to keep
// future sequence numbers monotonic with the ones just replayed.
func (w *Writer) SkipGenerationTo(gen uint64) {
	if gen >= w.gen {
		w.gen = gen + 1
	}
}

// reserveSeq advances the generation counter and returns the slot index,
// odd "in-progress" stamp and even "committed" stamp for this reservation.
func (w *Writer) reserveSeq() (idx, odd, even uint64) {
	gen := w.gen
	w.gen++
	idx = (gen - 1) & w.mask
	even = gen * 2
	odd = even | 1
	return idx, odd, even
}

// Reserve allocates length bytes in the arena (bump-pointer with
// wrap-around) and the next ring slot, stamping it with the odd
// in-progress sequence number before returning a handle the caller
// writes the payload into via Payload.
func (w *Writer) Reserve(length uint64, tag uint32) (*Handle, error) {
	dataCap := w.region.Header.DataCapacity()
	if length > dataCap {
		return nil, ErrTooLarge
	}

	cursor := w.region.Header.ArenaCursor()
	offset := cursor
	if offset+length > dataCap {
		// The tail does not fit; skip it and wrap to the start rather
		// than split a record across the wrap boundary.
		offset = 0
	}
	w.region.Header.SetArenaCursor(offset + length)

	idx, odd, even := w.reserveSeq()
	slot := w.region.Slot(idx)

	// Release store: everything the caller writes through Payload must
	// be sequenced after this becomes visible, and nothing before it
	// leaks into a reader that hasn't seen the odd stamp yet.
	slot.SetSeq(odd)

	return &Handle{
		slot:    slot,
		offset:  offset,
		length:  length,
		tag:     tag,
		seq:     even,
		payload: w.region.Arena()[offset : offset+length],
	}, nil
}

// Payload returns a mutable view into the reserved extent. The writer
// may modify it arbitrarily until Commit.
func (h *Handle) Payload() []byte {
	return h.payload
}

// OverrideSeq replaces the even sequence number Commit will publish,
// for callers that need the on-disk seq of a restored record to
// survive a restore instead of being renumbered by the writer's own
// generation counter. seq must be even and non-zero; the caller is
// responsible for keeping it consistent with HighWaterMark afterwards
// if it intends to keep writing new records through the same Writer.
func (h *Handle) OverrideSeq(seq uint64) {
	h.seq = seq
}

// Commit computes the payload's checksum, stamps the slot's metadata
// and publishes it with the even "committed" sequence number, then
// advances the region's high-water mark. After Commit the handle is
// invalid.
func (w *Writer) Commit(h *Handle) error {
	if h.done {
		return fmt.Errorf("ring: handle already committed or aborted")
	}
	h.done = true

	sum := checksum(w.region.Header.ChecksumAlgo(), h.payload)

	h.slot.SetOffset(h.offset)
	h.slot.SetLength(h.length)
	h.slot.SetTag(h.tag)
	h.slot.SetChecksum(sum)

	// Release store: the even stamp is the synchronization point a
	// reader's acquire load pairs with.
	h.slot.SetSeq(h.seq)

	w.region.Header.BumpHighWaterMark(h.seq)
	return nil
}

// Abort returns the slot to the Empty state without advancing the
// high-water mark. The arena bytes reserved for it are not reclaimed;
// they simply age out on the next wrap-around.
func (w *Writer) Abort(h *Handle) error {
	if h.done {
		return fmt.Errorf("ring: handle already committed or aborted")
	}
	h.done = true
	h.slot.SetSeq(0)
	return nil
}
