package rdb

import (
	"fmt"
	"math"
	"strconv"

	"redisreplica/internal/ioframe"
	"redisreplica/internal/lzf"
)

// readLength reads one of the six length/special encodings. isEncoded
// reports whether the returned value is a special-encoding selector (int8,
// int16, int32, LZF) rather than a true length, mirroring the two-bit
// dispatch spec.md documents.
func readLength(r *ioframe.Reader) (value uint64, isEncoded bool, err error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}
	switch first >> 6 {
	case lenEnc6Bit:
		return uint64(first & 0x3f), false, nil
	case lenEnc14Bit:
		second, err := r.ReadByte()
		if err != nil {
			return 0, false, err
		}
		return uint64(first&0x3f)<<8 | uint64(second), false, nil
	case lenEnc32or64:
		switch first & 0x3f {
		case 0:
			v, err := r.ReadUint32BE()
			if err != nil {
				return 0, false, err
			}
			return uint64(v), false, nil
		case 1:
			var buf [8]byte
			if err := r.ReadExact(buf[:]); err != nil {
				return 0, false, err
			}
			v := uint64(0)
			for _, b := range buf {
				v = v<<8 | uint64(b)
			}
			return v, false, nil
		default:
			return 0, false, fmt.Errorf("%w: bad 32/64-bit length selector %d", ErrDecode, first&0x3f)
		}
	default: // lenEncSpecial
		return uint64(first & 0x3f), true, nil
	}
}

// readString reads a length/string-encoded value: either a genuine
// length-prefixed byte run, an ASCII-decimal rendering of a packed integer,
// or an LZF-compressed block expanded to its declared size.
func readString(r *ioframe.Reader) ([]byte, error) {
	n, isEncoded, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if !isEncoded {
		buf := make([]byte, n)
		if err := r.ReadExact(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	switch n {
	case encInt8:
		v, err := r.ReadInt8()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case encInt16:
		v, err := r.ReadInt16LE()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case encInt32:
		v, err := r.ReadInt32LE()
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(v), 10)), nil
	case encLZF:
		clen, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		ulen, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		compressed := make([]byte, clen)
		if err := r.ReadExact(compressed); err != nil {
			return nil, err
		}
		out, err := lzf.Decompress(compressed, int(ulen))
		if err != nil {
			return nil, fmt.Errorf("%w: lzf string: %v", ErrDecode, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown string special-encoding %d", ErrDecode, n)
	}
}

// readDouble decodes the legacy ZSet v1 double format: a sentinel byte for
// +/-inf and NaN, or a length-prefixed ASCII decimal rendering.
//
// The source this was distilled from allocates a zero-length buffer before
// calling its exact-read primitive, so the read silently consumes zero
// bytes instead of the declared length — a bug. This implementation reads
// the declared length before parsing, which is the only way the RDB byte
// stream stays aligned for whatever follows.
func readDouble(r *ioframe.Reader) (float64, error) {
	lengthByte, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch lengthByte {
	case 255:
		return math.Inf(-1), nil
	case 254:
		return math.Inf(1), nil
	case 253:
		return math.NaN(), nil
	default:
		buf := make([]byte, lengthByte)
		if err := r.ReadExact(buf); err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(string(buf), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: malformed legacy double %q: %v", ErrDecode, buf, err)
		}
		return v, nil
	}
}

// readBinaryDouble decodes the ZSet v2 score format: a raw little-endian
// IEEE-754 double, no length prefix.
func readBinaryDouble(r *ioframe.Reader) (float64, error) {
	bits, err := r.ReadUint64LE()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
