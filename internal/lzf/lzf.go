// Package lzf implements the LZF/FASTLZ decompression format RDB uses for
// compressed string encodings. It is a pure function over byte slices: no
// I/O, no state beyond the two cursors walking the input and output buffers.
package lzf

import (
	"errors"
	"fmt"
)

// ErrCorrupt is returned when the compressed stream references data outside
// the bounds of what has been produced so far, or runs out of input before
// the output buffer is filled.
var ErrCorrupt = errors.New("lzf: corrupt compressed stream")

// Decompress expands src, which must hold exactly a complete LZF stream, into
// a buffer of expectedLen bytes. It returns ErrCorrupt (wrapped with detail)
// if the stream under- or over-runs the expected output length, or if a
// back-reference points before the start of the output.
//
// Every control byte's top three bits select one of two shapes:
//   - c < 32: a literal run. The low 5 bits plus one give the run length;
//     that many raw bytes follow and are copied verbatim.
//   - c >= 32: a back-reference. The top 3 bits of c are the high bits of a
//     length field (length = (c>>5)+2, bumped by one more byte when that
//     3-bit field reads 7), the low 5 bits of c are the high bits of a
//     negative offset into the output produced so far, and the following
//     byte supplies the offset's low 8 bits. The reference always copies at
//     least 2 bytes, which is what makes it worth encoding as a reference
//     rather than literals.
func Decompress(src []byte, expectedLen int) ([]byte, error) {
	out := make([]byte, 0, expectedLen)
	i := 0
	for i < len(src) {
		ctrl := int(src[i])
		i++
		if ctrl < 32 {
			runLen := ctrl + 1
			if i+runLen > len(src) {
				return nil, fmt.Errorf("%w: literal run of %d overruns input at %d", ErrCorrupt, runLen, i)
			}
			out = append(out, src[i:i+runLen]...)
			i += runLen
		} else {
			length := ctrl >> 5
			if length == 7 {
				if i >= len(src) {
					return nil, fmt.Errorf("%w: truncated extended length", ErrCorrupt)
				}
				length += int(src[i])
				i++
			}
			length += 2
			if i >= len(src) {
				return nil, fmt.Errorf("%w: truncated back-reference offset", ErrCorrupt)
			}
			ref := len(out) - ((ctrl&0x1f)<<8 | int(src[i])) - 1
			i++
			if ref < 0 {
				return nil, fmt.Errorf("%w: back-reference before start of output (ref=%d)", ErrCorrupt, ref)
			}
			for j := 0; j < length; j++ {
				out = append(out, out[ref+j])
			}
		}
	}
	if len(out) != expectedLen {
		return nil, fmt.Errorf("%w: produced %d bytes, expected %d", ErrCorrupt, len(out), expectedLen)
	}
	return out, nil
}
