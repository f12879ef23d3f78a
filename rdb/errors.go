package rdb

import "errors"

// ErrDecode wraps structural decode failures: malformed lengths, truncated
// packed subformats, LZF mismatches. An unknown type byte is reported as
// ErrUnsupportedType instead.
// Callers can distinguish it from I/O errors with errors.Is.
var ErrDecode = errors.New("rdb: decode error")

// ErrBadMagic is returned when the leading 9 bytes of a dump aren't a
// "REDIS" + 4-digit version header.
var ErrBadMagic = errors.New("rdb: bad magic header")

// ErrUnsupportedType is returned for a value-type byte this decoder doesn't
// recognize, or a module record with no ModuleParser installed to vouch for
// it as rejected per spec (module v1 requires a parser; unknown codes are
// always fatal).
var ErrUnsupportedType = errors.New("rdb: unsupported value type")
