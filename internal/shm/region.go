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
	"sync/atomic"
	"unsafe"
)

// Memory layout constants.
const (
	// Magic identifies a region created by this package.
	Magic = "SHMFQ\x00\x00\x00"

	// RegionVersion is the current header layout version.
	RegionVersion = uint32(1)

	// RegionHeaderSize is the header's size, aligned to 128 bytes so it
	// never shares a cache line pair with the first ring slot.
	RegionHeaderSize = 128

	// SlotSize is a single control-ring slot's size, 64-byte aligned.
	SlotSize = 64

	// ChecksumAlgoXXH64 selects github.com/cespare/xxhash/v2 (64-bit digest).
	ChecksumAlgoXXH64 = uint32(1)

	// ChecksumAlgoCRC32C selects hash/crc32's Castagnoli table (32-bit digest).
	ChecksumAlgoCRC32C = uint32(2)

	// MinRingCapacity is the smallest permitted number of control-ring slots.
	MinRingCapacity = 2

	// MinDataCapacity is the smallest permitted arena size in bytes.
	MinDataCapacity = 64
)

// RegionHeader is the fixed-size header at the start of a shared region.
//
// Fields are accessed exclusively through the atomic load/store helpers
// below; the struct is never addressed as ordinary memory once mapped.
type RegionHeader struct {
	magic         [8]byte
	version       uint32
	checksumAlgo  uint32
	ringOffset    uint64
	ringCapacity  uint64
	dataOffset    uint64
	dataCapacity  uint64
	highWaterMark uint64
	arenaCursor   uint64
	reserved      [128 - 8 - 4 - 4 - 8*6]byte
}

// Slot is one fixed-size control-ring entry, describing one published record.
type Slot struct {
	seq      uint64
	offset   uint64
	length   uint64
	tag      uint32
	checksum uint64
	// The compiler inserts 4 bytes of padding before checksum to
	// re-align it to 8 bytes after tag; reserved accounts for that so
	// unsafe.Sizeof(Slot{}) comes out to exactly SlotSize.
	reserved [24]byte
}

// Atomic accessors for RegionHeader.

func (h *RegionHeader) Magic() [8]byte { return h.magic }

func (h *RegionHeader) SetMagic(m [8]byte) { h.magic = m }

func (h *RegionHeader) Version() uint32 { return atomic.LoadUint32(&h.version) }

func (h *RegionHeader) SetVersion(v uint32) { atomic.StoreUint32(&h.version, v) }

func (h *RegionHeader) ChecksumAlgo() uint32 { return atomic.LoadUint32(&h.checksumAlgo) }

func (h *RegionHeader) SetChecksumAlgo(v uint32) { atomic.StoreUint32(&h.checksumAlgo, v) }

func (h *RegionHeader) RingOffset() uint64 { return atomic.LoadUint64(&h.ringOffset) }

func (h *RegionHeader) SetRingOffset(v uint64) { atomic.StoreUint64(&h.ringOffset, v) }

func (h *RegionHeader) RingCapacity() uint64 { return atomic.LoadUint64(&h.ringCapacity) }

func (h *RegionHeader) SetRingCapacity(v uint64) { atomic.StoreUint64(&h.ringCapacity, v) }

func (h *RegionHeader) DataOffset() uint64 { return atomic.LoadUint64(&h.dataOffset) }

func (h *RegionHeader) SetDataOffset(v uint64) { atomic.StoreUint64(&h.dataOffset, v) }

func (h *RegionHeader) DataCapacity() uint64 { return atomic.LoadUint64(&h.dataCapacity) }

func (h *RegionHeader) SetDataCapacity(v uint64) { atomic.StoreUint64(&h.dataCapacity, v) }

// HighWaterMark returns the largest seq committed so far. It is not
// load-bearing for correctness; readers may use it to skip ungenerated
// slots.
func (h *RegionHeader) HighWaterMark() uint64 { return atomic.LoadUint64(&h.highWaterMark) }

func (h *RegionHeader) SetHighWaterMark(v uint64) { atomic.StoreUint64(&h.highWaterMark, v) }

// BumpHighWaterMark advances the high-water mark to v if v is larger.
func (h *RegionHeader) BumpHighWaterMark(v uint64) {
	for {
		cur := atomic.LoadUint64(&h.highWaterMark)
		if v <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&h.highWaterMark, cur, v) {
			return
		}
	}
}

// ArenaCursor returns the current bump-allocator position. Only the
// single committing writer may call this; readers have no use for it.
func (h *RegionHeader) ArenaCursor() uint64 { return atomic.LoadUint64(&h.arenaCursor) }

func (h *RegionHeader) SetArenaCursor(v uint64) { atomic.StoreUint64(&h.arenaCursor, v) }

// Atomic accessors for Slot.

// Seq returns the slot's sequence number. Even means committed, odd
// means being written, zero means never written.
func (s *Slot) Seq() uint64 { return atomic.LoadUint64(&s.seq) }

func (s *Slot) SetSeq(v uint64) { atomic.StoreUint64(&s.seq, v) }

func (s *Slot) Offset() uint64 { return atomic.LoadUint64(&s.offset) }

func (s *Slot) SetOffset(v uint64) { atomic.StoreUint64(&s.offset, v) }

func (s *Slot) Length() uint64 { return atomic.LoadUint64(&s.length) }

func (s *Slot) SetLength(v uint64) { atomic.StoreUint64(&s.length, v) }

func (s *Slot) Tag() uint32 { return atomic.LoadUint32(&s.tag) }

func (s *Slot) SetTag(v uint32) { atomic.StoreUint32(&s.tag, v) }

func (s *Slot) Checksum() uint64 { return atomic.LoadUint64(&s.checksum) }

func (s *Slot) SetChecksum(v uint64) { atomic.StoreUint64(&s.checksum, v) }

// IsPowerOfTwo reports whether n is a power of two.
func IsPowerOfTwo(n uint64) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n.
func NextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	if IsPowerOfTwo(n) {
		return n
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

func alignTo128(size uint64) uint64 {
	return (size + 127) &^ 127
}

// CalculateLayout computes the header/ring/arena placement for a region
// sized to hold ringCapacity slots and dataCapacity bytes of arena.
func CalculateLayout(ringCapacity, dataCapacity uint64) (totalSize, ringOffset, dataOffset uint64, err error) {
	if !IsPowerOfTwo(ringCapacity) {
		return 0, 0, 0, fmt.Errorf("ring capacity %d is not a power of two", ringCapacity)
	}
	if ringCapacity < MinRingCapacity {
		return 0, 0, 0, fmt.Errorf("ring capacity %d is below minimum %d", ringCapacity, MinRingCapacity)
	}
	if dataCapacity < MinDataCapacity {
		return 0, 0, 0, fmt.Errorf("data capacity %d is below minimum %d", dataCapacity, MinDataCapacity)
	}

	ringOffset = alignTo128(RegionHeaderSize)
	ringBytes := ringCapacity * SlotSize
	dataOffset = alignTo128(ringOffset + ringBytes)
	totalSize = alignTo128(dataOffset + dataCapacity)

	return totalSize, ringOffset, dataOffset, nil
}

// ValidateHeader checks a mapped header for internal consistency. It
// returns an error wrapping ErrCorrupt (bad magic, invalid capacities,
// offsets that do not match the layout), ErrVersionMismatch, or
// ErrRegionTooSmall.
func ValidateHeader(h *RegionHeader, regionLen int) error {
	if h.Magic() != [8]byte{'S', 'H', 'M', 'F', 'Q', 0, 0, 0} {
		return fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if h.Version() != RegionVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version(), RegionVersion)
	}

	expectedTotal, expectedRingOff, expectedDataOff, err := CalculateLayout(h.RingCapacity(), h.DataCapacity())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if uint64(regionLen) < expectedTotal {
		return fmt.Errorf("%w: region is %d bytes, need %d", ErrRegionTooSmall, regionLen, expectedTotal)
	}
	if h.RingOffset() != expectedRingOff || h.DataOffset() != expectedDataOff {
		return fmt.Errorf("%w: offsets do not match computed layout", ErrCorrupt)
	}

	return nil
}

// headerAt returns a typed view of the header at the start of mem.
func headerAt(mem []byte) *RegionHeader {
	return (*RegionHeader)(unsafe.Pointer(&mem[0]))
}

// slotAt returns a typed view of the slot at index idx within the
// control ring starting at ringOffset.
func slotAt(mem []byte, ringOffset uint64, idx uint64) *Slot {
	return (*Slot)(unsafe.Add(unsafe.Pointer(&mem[0]), uintptr(ringOffset)+uintptr(idx)*SlotSize))
}

// arenaAt returns the arena's backing slice.
func arenaAt(mem []byte, dataOffset, dataCapacity uint64) []byte {
	return mem[dataOffset : dataOffset+dataCapacity]
}
