package ring

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/HeroicKatora/shmfd/internal/shm"
)

func newTestRegion(t *testing.T, ringCapacity, dataCapacity uint64) (*shm.Region, func()) {
	t.Helper()
	f, err := os.CreateTemp("", fmt.Sprintf("shmfd-ring-test-%d-*", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()

	region, err := shm.NewRegion(f, ringCapacity, dataCapacity)
	if err != nil {
		f.Close()
		os.Remove(path)
		t.Fatalf("shm.NewRegion: %v", err)
	}

	cleanup := func() {
		region.Close()
		os.Remove(path)
	}
	return region, cleanup
}

func TestReserveCommitReadBack(t *testing.T) {
	region, cleanup := newTestRegion(t, 8, 4096)
	defer cleanup()

	w, err := Initialize(region, 8, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	h, err := w.Reserve(5, 42)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	copy(h.Payload(), []byte("hello"))
	if err := w.Commit(h); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader := NewReader(region, 0)
	rec, err := reader.ReadSlot(0)
	if err != nil {
		t.Fatalf("ReadSlot: %v", err)
	}
	if rec == nil {
		t.Fatal("ReadSlot returned nil record for committed slot")
	}
	if string(rec.Payload) != "hello" {
		t.Fatalf("payload = %q, want %q", rec.Payload, "hello")
	}
	if rec.Tag != 42 {
		t.Fatalf("tag = %d, want 42", rec.Tag)
	}
}

func TestReadSlotEmptyReturnsNil(t *testing.T) {
	region, cleanup := newTestRegion(t, 8, 4096)
	defer cleanup()

	if _, err := Initialize(region, 8, 4096); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	reader := NewReader(region, 0)
	rec, err := reader.ReadSlot(0)
	if err != nil {
		t.Fatalf("ReadSlot on empty slot returned error: %v", err)
	}
	if rec != nil {
		t.Fatalf("ReadSlot on empty slot returned %+v, want nil", rec)
	}
}

func TestReserveTooLarge(t *testing.T) {
	region, cleanup := newTestRegion(t, 8, 64)
	defer cleanup()

	w, err := Initialize(region, 8, 64)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := w.Reserve(64, 0); err != nil {
		t.Fatalf("Reserve at exactly data capacity should succeed, got: %v", err)
	}

	if _, err := w.Reserve(65, 0); err != ErrTooLarge {
		t.Fatalf("Reserve(65, ...) = %v, want ErrTooLarge", err)
	}
}

func TestSlotAbortLeavesSlotEmpty(t *testing.T) {
	region, cleanup := newTestRegion(t, 8, 4096)
	defer cleanup()

	w, err := Initialize(region, 8, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	h, err := w.Reserve(4, 1)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	copy(h.Payload(), []byte("xyzw"))
	if err := w.Abort(h); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	reader := NewReader(region, 0)
	rec, err := reader.ReadSlot(0)
	if err != nil {
		t.Fatalf("ReadSlot after Abort: %v", err)
	}
	if rec != nil {
		t.Fatalf("ReadSlot after Abort returned %+v, want nil", rec)
	}
}

func TestReadSlotInProgressReturnsNilNotStale(t *testing.T) {
	region, cleanup := newTestRegion(t, 8, 4096)
	defer cleanup()

	w, err := Initialize(region, 8, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	h, err := w.Reserve(4, 7)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	copy(h.Payload(), []byte("wxyz"))
	// Deliberately left uncommitted: the slot's seq stays odd.

	reader := NewReader(region, 0)
	rec, err := reader.ReadSlot(0)
	if err != nil {
		t.Fatalf("ReadSlot on in-progress slot returned error = %v, want nil", err)
	}
	if rec != nil {
		t.Fatalf("ReadSlot on in-progress slot returned %+v, want nil", rec)
	}
}

func TestWraparoundSupersedesOldestSlot(t *testing.T) {
	region, cleanup := newTestRegion(t, 4, 4096)
	defer cleanup()

	w, err := Initialize(region, 4, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	for i := 0; i < 5; i++ {
		h, err := w.Reserve(4, uint32(i))
		if err != nil {
			t.Fatalf("Reserve #%d: %v", i, err)
		}
		copy(h.Payload(), []byte(fmt.Sprintf("r%03d", i)))
		if err := w.Commit(h); err != nil {
			t.Fatalf("Commit #%d: %v", i, err)
		}
	}

	seen := map[uint32]bool{}
	Scan(region, 0, func(idx uint64, rec *Record, err error) bool {
		if rec != nil {
			seen[rec.Tag] = true
		}
		return true
	})
	if seen[0] {
		t.Fatalf("oldest record (tag 0) should have been recycled by wraparound, but it is still present: %v", seen)
	}
	if !seen[4] {
		t.Fatalf("newest record (tag 4) should be present after wraparound, got %v", seen)
	}
	if len(seen) != 4 {
		t.Fatalf("expected exactly 4 live records after wraparound, got %d: %v", len(seen), seen)
	}
}

func TestScanVisitsEveryIndex(t *testing.T) {
	region, cleanup := newTestRegion(t, 4, 4096)
	defer cleanup()

	w, err := Initialize(region, 4, 4096)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	for i := 0; i < 3; i++ {
		h, err := w.Reserve(2, uint32(i))
		if err != nil {
			t.Fatalf("Reserve #%d: %v", i, err)
		}
		copy(h.Payload(), []byte("ab"))
		if err := w.Commit(h); err != nil {
			t.Fatalf("Commit #%d: %v", i, err)
		}
	}

	visited := 0
	var committed int
	Scan(region, 0, func(idx uint64, rec *Record, err error) bool {
		visited++
		if rec != nil {
			committed++
		}
		return true
	})
	if visited != 4 {
		t.Fatalf("Scan visited %d slots, want 4", visited)
	}
	if committed != 3 {
		t.Fatalf("Scan found %d committed slots, want 3", committed)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	region, cleanup := newTestRegion(t, 16, 1<<16)
	defer cleanup()

	w, err := Initialize(region, 16, 1<<16)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	const writes = 500
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < writes; i++ {
			h, err := w.Reserve(8, uint32(i))
			if err != nil {
				t.Errorf("Reserve #%d: %v", i, err)
				return
			}
			copy(h.Payload(), []byte(fmt.Sprintf("v%07d", i)))
			if err := w.Commit(h); err != nil {
				t.Errorf("Commit #%d: %v", i, err)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reader := NewReader(region, 4)
			for i := 0; i < 200; i++ {
				_, err := reader.ReadSlot(uint64(i) % 16)
				if err != nil && err != ErrStale {
					t.Errorf("ReadSlot: unexpected error %v", err)
					return
				}
			}
		}()
	}

	<-done
	wg.Wait()
}
