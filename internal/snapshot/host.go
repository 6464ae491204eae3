package snapshot

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/HeroicKatora/shmfd/internal/ring"
	"github.com/HeroicKatora/shmfd/internal/shm"
)

// DefaultKeep is how many frames Take retains by default.
const DefaultKeep = 2

// RestoreOptions controls how Restore replays a frame's records into
// a fresh ring.
type RestoreOptions struct {
	// PreserveSequence, when true, stamps each restored record with
	// its original seq from the frame instead of letting Reserve
	// assign a fresh monotonic one. Useful for callers that rely on
	// sequence numbers as a stable identity across a restore; the
	// default (false) renumbers and is the common case.
	PreserveSequence bool
}

// Take walks region's control ring (ring.Scan with ring.DefaultRetries
// per slot), assembles a
// frame of every record that currently reads back clean, appends it
// to sink, and trims to the last keep frames (DefaultKeep if keep <=
// 0). A record that reads as Stale is simply omitted from the frame;
// it does not fail the snapshot.
func Take(region *shm.Region, sink Sink, keep int, nowUnixNano uint64, log hclog.Logger) error {
	if keep <= 0 {
		keep = DefaultKeep
	}

	var records []Record
	ring.Scan(region, 0, func(idx uint64, rec *ring.Record, err error) bool {
		switch {
		case err != nil:
			log.Debug("skipping stale slot during snapshot", "index", idx, "error", err)
		case rec != nil:
			records = append(records, Record{
				Seq:     rec.Seq,
				Tag:     rec.Tag,
				Payload: rec.Payload,
			})
		}
		return true
	})

	header := FrameHeader{
		TimestampUnixNano: nowUnixNano,
		RegionSize:        uint64(len(region.Mem)),
		RingCapacity:      uint32(region.Header.RingCapacity()),
		SlotSize:          shm.SlotSize,
		DataCapacity:      region.Header.DataCapacity(),
	}

	frame, err := EncodeFrame(header, records)
	if err != nil {
		return fmt.Errorf("snapshot: encode frame: %w", err)
	}

	if err := sink.AppendFrame(frame); err != nil {
		return err
	}
	return sink.Trim(keep)
}

// Restore scans sink's frames from the most recently appended
// backwards, replaying the first one that decodes and validates into
// writer via a Reserve/Commit cycle per record (in ascending seq
// order). It returns ErrNoValidFrame if no frame in sink validates —
// the caller should then proceed with an empty region rather than
// treat this as fatal.
func Restore(writer *ring.Writer, sink Sink, opts RestoreOptions) (int, error) {
	frames, err := sink.Frames()
	if err != nil {
		return 0, err
	}

	for i := len(frames) - 1; i >= 0; i-- {
		_, records, _, err := DecodeFrame(frames[i])
		if err != nil {
			continue
		}

		sortBySeq(records)
		var maxSeq uint64
		for _, rec := range records {
			h, err := writer.Reserve(uint64(len(rec.Payload)), rec.Tag)
			if err != nil {
				return 0, fmt.Errorf("snapshot: restore record: %w", err)
			}
			copy(h.Payload(), rec.Payload)
			if opts.PreserveSequence && rec.Seq != 0 {
				h.OverrideSeq(rec.Seq)
				if rec.Seq > maxSeq {
					maxSeq = rec.Seq
				}
			}
			if err := writer.Commit(h); err != nil {
				return 0, fmt.Errorf("snapshot: commit restored record: %w", err)
			}
		}
		if opts.PreserveSequence && maxSeq != 0 {
			writer.SkipGenerationTo(maxSeq / 2)
		}

		return len(records), nil
	}

	return 0, ErrNoValidFrame
}

func sortBySeq(records []Record) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j-1].Seq > records[j].Seq; j-- {
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}
