package snapshot

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/HeroicKatora/shmfd/internal/ring"
	"github.com/HeroicKatora/shmfd/internal/shm"
)

type memSink struct {
	frames [][]byte
}

func (m *memSink) AppendFrame(frame []byte) error {
	m.frames = append(m.frames, frame)
	return nil
}

func (m *memSink) Frames() ([][]byte, error) {
	return m.frames, nil
}

func (m *memSink) Trim(keep int) error {
	if len(m.frames) > keep {
		m.frames = m.frames[len(m.frames)-keep:]
	}
	return nil
}

func newTestRegion(t *testing.T, ringCapacity, dataCapacity uint64) (*shm.Region, func()) {
	t.Helper()
	f, err := os.CreateTemp("", fmt.Sprintf("shmfd-snapshot-test-%d-*", time.Now().UnixNano()))
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
	return region, func() {
		region.Close()
		os.Remove(path)
	}
}

func discardLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{Output: discardWriter{}})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	records := []Record{
		{Seq: 2, Offset: 0, Tag: 1, Payload: []byte("abc")},
		{Seq: 4, Offset: 8, Tag: 2, Payload: []byte("defgh")},
	}
	header := FrameHeader{
		TimestampUnixNano: 12345,
		RegionSize:        4096,
		RingCapacity:      16,
		SlotSize:          shm.SlotSize,
		DataCapacity:      2048,
	}

	frame, err := EncodeFrame(header, records)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	got, gotRecords, n, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if n != len(frame) {
		t.Fatalf("DecodeFrame consumed %d bytes, want %d", n, len(frame))
	}
	if got.RecordCount != 2 {
		t.Fatalf("RecordCount = %d, want 2", got.RecordCount)
	}
	if len(gotRecords) != 2 {
		t.Fatalf("got %d records, want 2", len(gotRecords))
	}
	if string(gotRecords[0].Payload) != "abc" || string(gotRecords[1].Payload) != "defgh" {
		t.Fatalf("payload mismatch: %+v", gotRecords)
	}
}

func TestDecodeFrameRejectsBadMagic(t *testing.T) {
	garbage := make([]byte, 64)
	if _, _, _, err := DecodeFrame(garbage); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("DecodeFrame(garbage) error = %v, want ErrCorrupt", err)
	}
}

func TestDecodeFrameRejectsTamperedChecksum(t *testing.T) {
	records := []Record{{Seq: 2, Tag: 1, Payload: []byte("abc")}}
	frame, err := EncodeFrame(FrameHeader{RingCapacity: 8, DataCapacity: 1024}, records)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	frame[len(frame)-1] ^= 0xFF

	if _, _, _, err := DecodeFrame(frame); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("DecodeFrame(tampered) error = %v, want ErrCorrupt", err)
	}
}

func TestTakeAndRestoreRoundTrip(t *testing.T) {
	region, cleanup := newTestRegion(t, 8, 4096)
	defer cleanup()

	w, err := ring.Initialize(region, 8, 4096)
	if err != nil {
		t.Fatalf("ring.Initialize: %v", err)
	}

	for i := 0; i < 3; i++ {
		h, err := w.Reserve(4, uint32(i))
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		copy(h.Payload(), []byte(fmt.Sprintf("r%03d", i)))
		if err := w.Commit(h); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	sink := &memSink{}
	if err := Take(region, sink, 2, 1000, discardLogger()); err != nil {
		t.Fatalf("Take: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("sink has %d frames, want 1", len(sink.frames))
	}

	restoredRegion, cleanup2 := newTestRegion(t, 8, 4096)
	defer cleanup2()
	restoredWriter, err := ring.Initialize(restoredRegion, 8, 4096)
	if err != nil {
		t.Fatalf("ring.Initialize (restored): %v", err)
	}

	n, err := Restore(restoredWriter, sink, RestoreOptions{})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 3 {
		t.Fatalf("Restore replayed %d records, want 3", n)
	}

	reader := ring.NewReader(restoredRegion, 0)
	seen := map[string]bool{}
	for i := uint64(0); i < 8; i++ {
		rec, err := reader.ReadSlot(i)
		if err != nil {
			t.Fatalf("ReadSlot(%d): %v", i, err)
		}
		if rec != nil {
			seen[string(rec.Payload)] = true
		}
	}
	for i := 0; i < 3; i++ {
		want := fmt.Sprintf("r%03d", i)
		if !seen[want] {
			t.Errorf("restored ring missing record %q", want)
		}
	}
}

func TestRestoreWithNoFramesReturnsErrNoValidFrame(t *testing.T) {
	region, cleanup := newTestRegion(t, 8, 4096)
	defer cleanup()
	w, err := ring.Initialize(region, 8, 4096)
	if err != nil {
		t.Fatalf("ring.Initialize: %v", err)
	}

	sink := &memSink{}
	if _, err := Restore(w, sink, RestoreOptions{}); err != ErrNoValidFrame {
		t.Fatalf("Restore with empty sink error = %v, want ErrNoValidFrame", err)
	}
}

func TestTrimKeepsOnlyLastK(t *testing.T) {
	sink := &memSink{}
	for i := 0; i < 5; i++ {
		records := []Record{{Seq: uint64(2 * (i + 1)), Tag: uint32(i), Payload: []byte("x")}}
		frame, err := EncodeFrame(FrameHeader{RingCapacity: 8, DataCapacity: 64}, records)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		if err := sink.AppendFrame(frame); err != nil {
			t.Fatalf("AppendFrame: %v", err)
		}
	}
	if err := sink.Trim(2); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if len(sink.frames) != 2 {
		t.Fatalf("sink has %d frames after Trim(2), want 2", len(sink.frames))
	}
}
