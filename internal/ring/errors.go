package ring

import "errors"

var (
	// ErrTooLarge is returned by Reserve when length exceeds the
	// arena's total data capacity. The writer decides what to do next;
	// the ring itself never blocks waiting for space.
	ErrTooLarge = errors.New("ring: record larger than arena capacity")

	// ErrStale is returned by ReadSlot and delivered to Scan's callback
	// when a reader's retry budget is exhausted or the payload checksum
	// does not match the slot's stored checksum. It is not an error in
	// the region's structure — it means a fast writer raced the reader
	// off the slot it was reading.
	ErrStale = errors.New("ring: slot observation is stale")
)
