package rdb

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// parseIntset decodes a complete in-memory intset blob: an 8-byte header
// (4-byte little-endian element width, 4-byte little-endian length)
// followed by that many fixed-width little-endian integers, each
// stringified to ASCII decimal as the RDB set-of-strings contract requires.
func parseIntset(raw []byte) ([][]byte, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: intset too short (%d bytes)", ErrDecode, len(raw))
	}
	width := binary.LittleEndian.Uint32(raw[0:4])
	length := binary.LittleEndian.Uint32(raw[4:8])
	pos := 8
	members := make([][]byte, 0, length)
	for i := uint32(0); i < length; i++ {
		var v int64
		switch width {
		case 2:
			if pos+2 > len(raw) {
				return nil, fmt.Errorf("%w: intset truncated at element %d", ErrDecode, i)
			}
			v = int64(int16(binary.LittleEndian.Uint16(raw[pos : pos+2])))
			pos += 2
		case 4:
			if pos+4 > len(raw) {
				return nil, fmt.Errorf("%w: intset truncated at element %d", ErrDecode, i)
			}
			v = int64(int32(binary.LittleEndian.Uint32(raw[pos : pos+4])))
			pos += 4
		case 8:
			if pos+8 > len(raw) {
				return nil, fmt.Errorf("%w: intset truncated at element %d", ErrDecode, i)
			}
			v = int64(binary.LittleEndian.Uint64(raw[pos : pos+8]))
			pos += 8
		default:
			return nil, fmt.Errorf("%w: unsupported intset encoding width %d", ErrDecode, width)
		}
		members = append(members, []byte(strconv.FormatInt(v, 10)))
	}
	return members, nil
}
