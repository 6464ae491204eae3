package snapshot

import (
	"path/filepath"
	"testing"
)

func TestFileSinkMissingFileYieldsNoFrames(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	frames, err := sink.Frames()
	if err != nil {
		t.Fatalf("Frames() on missing file error = %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("Frames() on missing file = %d frames, want 0", len(frames))
	}
}

func TestFileSinkAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backing.bin")
	sink := NewFileSink(path)

	for i := 0; i < 3; i++ {
		records := []Record{{Seq: uint64(2 * (i + 1)), Tag: uint32(i), Payload: []byte("hello")}}
		frame, err := EncodeFrame(FrameHeader{RingCapacity: 8, DataCapacity: 64}, records)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		if err := sink.AppendFrame(frame); err != nil {
			t.Fatalf("AppendFrame: %v", err)
		}
	}

	frames, err := sink.Frames()
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("Frames() = %d, want 3", len(frames))
	}
}

func TestFileSinkTrimRewritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backing.bin")
	sink := NewFileSink(path)

	for i := 0; i < 4; i++ {
		records := []Record{{Seq: uint64(2 * (i + 1)), Tag: uint32(i), Payload: []byte("x")}}
		frame, err := EncodeFrame(FrameHeader{RingCapacity: 8, DataCapacity: 64}, records)
		if err != nil {
			t.Fatalf("EncodeFrame: %v", err)
		}
		if err := sink.AppendFrame(frame); err != nil {
			t.Fatalf("AppendFrame: %v", err)
		}
	}

	if err := sink.Trim(1); err != nil {
		t.Fatalf("Trim: %v", err)
	}

	frames, err := sink.Frames()
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Frames() after Trim(1) = %d, want 1", len(frames))
	}
	_, records, _, err := DecodeFrame(frames[0])
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if records[0].Tag != 3 {
		t.Fatalf("surviving frame tag = %d, want 3 (the last one written)", records[0].Tag)
	}
}
