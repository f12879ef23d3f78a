package rdb

import (
	"encoding/binary"
	"fmt"

	"redisreplica/internal/ioframe"
)

// Module v2 field opcodes.
const (
	moduleOpEOF    = 0
	moduleOpSInt   = 1
	moduleOpUInt   = 2
	moduleOpFloat  = 3
	moduleOpDouble = 4
	moduleOpString = 5
)

// readModuleID reads the 64-bit module identifier every module record is
// keyed by (name + version, packed by the source application).
func readModuleID(r *ioframe.Reader) (uint64, error) {
	return r.ReadUint64LE()
}

// skipModulePayload walks a module v2 save stream field-by-field until its
// EOF opcode, returning the raw bytes of every field read (opcode bytes
// included) so they can be handed to a ModuleParser or kept as an opaque
// placeholder. Module v1 records have no EOF marker and no generic
// structure to walk; they are rejected unless a ModuleParser is present to
// claim responsibility for them.
func skipModulePayload(r *ioframe.Reader) ([]byte, error) {
	var payload []byte
	for {
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		payload = append(payload, opByte)
		op, _, err := decodeModuleOpcode(opByte)
		if err != nil {
			return nil, err
		}
		if op == moduleOpEOF {
			return payload, nil
		}
		field, err := readModuleField(r, op)
		if err != nil {
			return nil, err
		}
		payload = append(payload, field...)
	}
}

// decodeModuleOpcode re-reads the length-encoded opcode byte (module
// opcodes are themselves written via the same 6-bit length encoding as
// everything else, with small values 0-5 always fitting in one byte).
func decodeModuleOpcode(b byte) (int, int, error) {
	if b>>6 != lenEnc6Bit {
		return 0, 0, fmt.Errorf("%w: module opcode byte 0x%02x not 6-bit encoded", ErrDecode, b)
	}
	return int(b & 0x3f), 1, nil
}

func readModuleField(r *ioframe.Reader, op int) ([]byte, error) {
	switch op {
	case moduleOpSInt, moduleOpUInt:
		// Re-use the generic length reader; module ints are length-encoded
		// the same way any other RDB length is, just interpreted as a value
		// rather than a count.
		return readLengthRaw(r)
	case moduleOpFloat:
		buf := make([]byte, 4)
		if err := r.ReadExact(buf); err != nil {
			return nil, err
		}
		return buf, nil
	case moduleOpDouble:
		buf := make([]byte, 8)
		if err := r.ReadExact(buf); err != nil {
			return nil, err
		}
		return buf, nil
	case moduleOpString:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		header := encodeLengthHeader(len(s))
		return append(header, s...), nil
	default:
		return nil, fmt.Errorf("%w: unknown module field opcode %d", ErrDecode, op)
	}
}

// readLengthRaw reads one length encoding and returns the exact bytes it
// occupied on the wire, for payload capture purposes.
func readLengthRaw(r *ioframe.Reader) ([]byte, error) {
	first, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch first >> 6 {
	case lenEnc6Bit:
		return []byte{first}, nil
	case lenEnc14Bit:
		second, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return []byte{first, second}, nil
	case lenEnc32or64:
		switch first & 0x3f {
		case 0:
			buf := make([]byte, 5)
			buf[0] = first
			if err := r.ReadExact(buf[1:]); err != nil {
				return nil, err
			}
			return buf, nil
		case 1:
			buf := make([]byte, 9)
			buf[0] = first
			if err := r.ReadExact(buf[1:]); err != nil {
				return nil, err
			}
			return buf, nil
		default:
			return nil, fmt.Errorf("%w: bad module length selector", ErrDecode)
		}
	default:
		return []byte{first}, nil
	}
}

// encodeLengthHeader renders the 6-bit/14-bit/32-bit header for n the way
// the wire would have, used only to reconstruct a faithful raw payload
// capture for module string fields (whose length we already decoded via
// readString rather than readLengthRaw).
func encodeLengthHeader(n int) []byte {
	switch {
	case n < 1<<6:
		return []byte{byte(n)}
	case n < 1<<14:
		return []byte{0x40 | byte(n>>8), byte(n)}
	default:
		buf := make([]byte, 5)
		buf[0] = 0x80
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		return buf
	}
}
