package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// FrameMagic identifies the start of a frame: the ASCII bytes "SHMF"
// read as a big-endian u32. Like every field it is written
// little-endian, so on disk a frame starts with the bytes "FMHS".
const FrameMagic = uint32(0x53484D46)

// FrameVersion is the only frame layout this package writes.
const FrameVersion = uint16(1)

const (
	frameHeaderSize = 4 + 2 + 2 + 8 + 8 + 4 + 4 + 8 + 4 + 4 // through reserved
	recordHeaderSize = 8 + 8 + 8 + 4 + 4
)

// FrameHeader describes one snapshot's region layout and record count.
type FrameHeader struct {
	Magic             uint32
	Version           uint16
	Flags             uint16
	TimestampUnixNano uint64
	RegionSize        uint64
	RingCapacity      uint32
	SlotSize          uint32
	DataCapacity      uint64
	RecordCount       uint32
}

// Record is one ring entry as stored in a frame.
type Record struct {
	Seq     uint64
	Offset  uint64
	Length  uint64
	Tag     uint32
	Payload []byte
}

// payloadChecksum32 truncates the package's checksum digest to 32
// bits for the on-disk Record.payload_checksum field, keeping a
// single hash implementation for both widths.
func payloadChecksum32(payload []byte) uint32 {
	return uint32(xxhash.Sum64(payload))
}

// EncodeFrame serializes header and records into the frame's on-disk
// byte layout, including the trailing frame checksum over every
// preceding byte.
func EncodeFrame(h FrameHeader, records []Record) ([]byte, error) {
	h.Magic = FrameMagic
	h.Version = FrameVersion
	h.RecordCount = uint32(len(records))

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h.Magic); err != nil {
		return nil, err
	}
	binary.Write(&buf, binary.LittleEndian, h.Version)
	binary.Write(&buf, binary.LittleEndian, h.Flags)
	binary.Write(&buf, binary.LittleEndian, h.TimestampUnixNano)
	binary.Write(&buf, binary.LittleEndian, h.RegionSize)
	binary.Write(&buf, binary.LittleEndian, h.RingCapacity)
	binary.Write(&buf, binary.LittleEndian, h.SlotSize)
	binary.Write(&buf, binary.LittleEndian, h.DataCapacity)
	binary.Write(&buf, binary.LittleEndian, h.RecordCount)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // reserved

	for _, r := range records {
		binary.Write(&buf, binary.LittleEndian, r.Seq)
		binary.Write(&buf, binary.LittleEndian, r.Offset)
		binary.Write(&buf, binary.LittleEndian, uint64(len(r.Payload)))
		binary.Write(&buf, binary.LittleEndian, r.Tag)
		binary.Write(&buf, binary.LittleEndian, payloadChecksum32(r.Payload))
		buf.Write(r.Payload)
		if pad := padTo8(len(r.Payload)); pad > 0 {
			buf.Write(make([]byte, pad))
		}
	}

	sum := xxhash.Sum64(buf.Bytes())
	binary.Write(&buf, binary.LittleEndian, sum)

	return buf.Bytes(), nil
}

// padTo8 returns the number of zero bytes needed to round n up to an
// 8-byte boundary.
func padTo8(n int) int {
	return (8 - n%8) % 8
}

// DecodeFrame parses and validates one frame starting at the
// beginning of data, returning the header, records, and the total
// number of bytes the frame occupied (so the caller can locate the
// next frame, or walk backwards past this one).
func DecodeFrame(data []byte) (FrameHeader, []Record, int, error) {
	var h FrameHeader
	if len(data) < frameHeaderSize+8 {
		return h, nil, 0, fmt.Errorf("%w: truncated frame header", ErrCorrupt)
	}

	r := bytes.NewReader(data)
	binary.Read(r, binary.LittleEndian, &h.Magic)
	if h.Magic != FrameMagic {
		return h, nil, 0, fmt.Errorf("%w: bad frame magic", ErrCorrupt)
	}
	binary.Read(r, binary.LittleEndian, &h.Version)
	binary.Read(r, binary.LittleEndian, &h.Flags)
	binary.Read(r, binary.LittleEndian, &h.TimestampUnixNano)
	binary.Read(r, binary.LittleEndian, &h.RegionSize)
	binary.Read(r, binary.LittleEndian, &h.RingCapacity)
	binary.Read(r, binary.LittleEndian, &h.SlotSize)
	binary.Read(r, binary.LittleEndian, &h.DataCapacity)
	binary.Read(r, binary.LittleEndian, &h.RecordCount)
	var reserved uint32
	binary.Read(r, binary.LittleEndian, &reserved)

	if h.Version != FrameVersion {
		return h, nil, 0, fmt.Errorf("%w: unsupported frame version %d", ErrCorrupt, h.Version)
	}

	records := make([]Record, 0, h.RecordCount)
	for i := uint32(0); i < h.RecordCount; i++ {
		var rec Record
		var length uint64
		var wantChecksum uint32

		if err := binary.Read(r, binary.LittleEndian, &rec.Seq); err != nil {
			return h, nil, 0, fmt.Errorf("%w: truncated record header", ErrCorrupt)
		}
		binary.Read(r, binary.LittleEndian, &rec.Offset)
		binary.Read(r, binary.LittleEndian, &length)
		binary.Read(r, binary.LittleEndian, &rec.Tag)
		binary.Read(r, binary.LittleEndian, &wantChecksum)

		rec.Length = length
		payload := make([]byte, length)
		if _, err := r.Read(payload); err != nil {
			return h, nil, 0, fmt.Errorf("%w: truncated record payload", ErrCorrupt)
		}
		if payloadChecksum32(payload) != wantChecksum {
			return h, nil, 0, fmt.Errorf("%w: record payload checksum mismatch", ErrCorrupt)
		}
		rec.Payload = payload

		if pad := padTo8(int(length)); pad > 0 {
			skip := make([]byte, pad)
			if _, err := r.Read(skip); err != nil {
				return h, nil, 0, fmt.Errorf("%w: truncated record padding", ErrCorrupt)
			}
		}

		records = append(records, rec)
	}

	consumed := len(data) - r.Len()
	if r.Len() < 8 {
		return h, nil, 0, fmt.Errorf("%w: truncated frame checksum", ErrCorrupt)
	}
	var wantFrameChecksum uint64
	binary.Read(r, binary.LittleEndian, &wantFrameChecksum)
	consumed += 8

	if xxhash.Sum64(data[:consumed-8]) != wantFrameChecksum {
		return h, nil, 0, fmt.Errorf("%w: frame checksum mismatch", ErrCorrupt)
	}

	return h, records, consumed, nil
}
