package ring

import (
	"hash/crc32"

	"github.com/cespare/xxhash/v2"

	"github.com/HeroicKatora/shmfd/internal/shm"
)

// checksum computes the digest for payload under the algorithm selected
// by the region's header. xxhash64 is the default: a fast,
// non-cryptographic hash. CRC32C (Castagnoli) is kept for regions
// restored from a frame written by an older version that only ever
// stored a 32-bit digest; see DESIGN.md.
func checksum(algo uint32, payload []byte) uint64 {
	switch algo {
	case shm.ChecksumAlgoCRC32C:
		return uint64(crc32.Checksum(payload, crc32.MakeTable(crc32.Castagnoli)))
	default:
		return xxhash.Sum64(payload)
	}
}
