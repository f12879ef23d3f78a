package rdb

import (
	"encoding/binary"
	"fmt"
)

// parseZipmap decodes a complete in-memory zipmap blob (the legacy
// pre-ziplist hash packing) into its (key, value) pairs.
func parseZipmap(raw []byte) ([]HashField, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("%w: zipmap too short", ErrDecode)
	}
	pos := 1 // skip zmlen byte; it's advisory and unreliable past 253 entries
	var fields []HashField
	for {
		if pos >= len(raw) {
			return nil, fmt.Errorf("%w: zipmap missing terminator", ErrDecode)
		}
		if raw[pos] == zipTerminator {
			break
		}
		key, n, err := readZipmapLen(raw[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if pos+key > len(raw) {
			return nil, fmt.Errorf("%w: zipmap key out of bounds", ErrDecode)
		}
		keyBytes := raw[pos : pos+key]
		pos += key

		if pos >= len(raw) {
			return nil, fmt.Errorf("%w: zipmap missing value length", ErrDecode)
		}
		val, n, err := readZipmapLen(raw[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if pos >= len(raw) {
			return nil, fmt.Errorf("%w: zipmap missing free-byte count", ErrDecode)
		}
		free := int(raw[pos])
		pos++
		if pos+val+free > len(raw) {
			return nil, fmt.Errorf("%w: zipmap value out of bounds", ErrDecode)
		}
		valBytes := raw[pos : pos+val]
		pos += val + free

		fields = append(fields, HashField{Name: keyBytes, Value: valBytes})
	}
	return fields, nil
}

// readZipmapLen decodes one zipmap length field: a single byte for lengths
// under 254, or the marker byte 254 followed by a 4-byte big-endian length.
// Returns the length and the number of header bytes consumed.
func readZipmapLen(buf []byte) (length int, consumed int, err error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("%w: zipmap length out of bounds", ErrDecode)
	}
	if buf[0] < 254 {
		return int(buf[0]), 1, nil
	}
	if buf[0] == 254 {
		if len(buf) < 5 {
			return 0, 0, fmt.Errorf("%w: zipmap extended length truncated", ErrDecode)
		}
		return int(binary.BigEndian.Uint32(buf[1:5])), 5, nil
	}
	return 0, 0, fmt.Errorf("%w: unexpected zipmap terminator as length", ErrDecode)
}
