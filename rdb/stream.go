package rdb

import (
	"fmt"

	"redisreplica/internal/ioframe"
)

// streamVersionV2 and streamVersionV3 gate the optional fields added to the
// stream-listpacks payload across RDB format revisions: v2 adds
// first-id/max-deleted-entry-id/entries-added plus per-group entries-read;
// v3 additionally adds a per-consumer active-time.
const (
	streamVersionV2 = 10
	streamVersionV3 = 11
)

// parseStream reads a complete stream object from the wire: a sequence of
// (streamID, listpack) pairs, then length metadata, then consumer groups.
// rdbVersion selects which optional fields the encoder included.
func parseStream(r *ioframe.Reader, rdbVersion int) (*StreamEvent, error) {
	numListpacks, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	entries := make([]StreamEntry, 0, numListpacks)
	for i := uint64(0); i < numListpacks; i++ {
		id, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: stream entry %d id: %v", ErrDecode, i, err)
		}
		lp, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: stream entry %d listpack: %v", ErrDecode, i, err)
		}
		entries = append(entries, StreamEntry{ID: id, Listpack: lp})
	}

	length, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	lastMS, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	lastSeq, _, err := readLength(r)
	if err != nil {
		return nil, err
	}

	if rdbVersion >= streamVersionV2 {
		// first_id, max_deleted_entry_id (ms, seq each), entries_added —
		// read and discarded; the decoder does not need them to stay
		// correctly positioned on the wire for anything downstream.
		if _, _, err := readLength(r); err != nil {
			return nil, err
		}
		if _, _, err := readLength(r); err != nil {
			return nil, err
		}
		if _, _, err := readLength(r); err != nil {
			return nil, err
		}
		if _, _, err := readLength(r); err != nil {
			return nil, err
		}
		if _, _, err := readLength(r); err != nil {
			return nil, err
		}
	}

	numGroups, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	groups := make([]StreamGroup, 0, numGroups)
	for g := uint64(0); g < numGroups; g++ {
		group, err := parseStreamGroup(r, rdbVersion)
		if err != nil {
			return nil, fmt.Errorf("%w: stream group %d: %v", ErrDecode, g, err)
		}
		groups = append(groups, *group)
	}

	return &StreamEvent{
		Entries: entries,
		Groups:  groups,
		Length:  int64(length),
		LastID:  [2]uint64{lastMS, lastSeq},
	}, nil
}

func parseStreamGroup(r *ioframe.Reader, rdbVersion int) (*StreamGroup, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	lastMS, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	lastSeq, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	var entriesRead int64
	if rdbVersion >= streamVersionV2 {
		v, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		entriesRead = int64(v)
	}

	numPEL, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numPEL; i++ {
		// Global PEL entry: 16 raw bytes (stream ID), 8 raw bytes (delivery
		// time), then a length (delivery count). Not length-prefixed.
		var id [16]byte
		if err := r.ReadExact(id[:]); err != nil {
			return nil, err
		}
		var deliveryTime [8]byte
		if err := r.ReadExact(deliveryTime[:]); err != nil {
			return nil, err
		}
		if _, _, err := readLength(r); err != nil {
			return nil, err
		}
	}

	numConsumers, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	consumers := make([]StreamConsumer, 0, numConsumers)
	for i := uint64(0); i < numConsumers; i++ {
		c, err := parseStreamConsumer(r, rdbVersion)
		if err != nil {
			return nil, err
		}
		consumers = append(consumers, *c)
	}

	return &StreamGroup{
		Name:             name,
		LastDeliveredMS:  lastMS,
		LastDeliveredSeq: lastSeq,
		EntriesRead:      entriesRead,
		Consumers:        consumers,
	}, nil
}

func parseStreamConsumer(r *ioframe.Reader, rdbVersion int) (*StreamConsumer, error) {
	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	seenTime, err := r.ReadUint64LE()
	if err != nil {
		return nil, err
	}
	var activeTime uint64
	if rdbVersion >= streamVersionV3 {
		activeTime, err = r.ReadUint64LE()
		if err != nil {
			return nil, err
		}
	}
	numPEL, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numPEL; i++ {
		var id [16]byte
		if err := r.ReadExact(id[:]); err != nil {
			return nil, err
		}
	}
	return &StreamConsumer{
		Name:           name,
		SeenTime:       seenTime,
		ActiveTime:     activeTime,
		PendingEntries: int64(numPEL),
	}, nil
}
