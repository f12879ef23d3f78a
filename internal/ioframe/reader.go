// Package ioframe implements the byte-counting reader shared by the RESP
// framer and the RDB decoder. It wraps an arbitrary io.Reader and, once
// marked, tallies exactly the number of bytes its own read primitives hand
// back to callers — nothing more, nothing less.
package ioframe

import (
	"encoding/binary"
	"errors"
	"io"
)

// ErrNotMarked is returned by Unmark when called without a matching Mark.
var ErrNotMarked = errors.New("ioframe: unmark called without mark")

// Reader wraps a byte source and exposes the exact-read primitives the
// replication protocol is built from. All reads — whether decoding a RESP
// reply, an RDB opcode, or a length-prefixed string — flow through here, so
// Mark/Unmark can measure precisely how many bytes any given protocol unit
// consumed regardless of which higher-level decoder is driving the reads.
type Reader struct {
	src    io.Reader
	marked bool
	count  int64
}

// New wraps src. Callers typically pass a *bufio.Reader over a net.Conn so
// individual byte reads don't each cost a syscall.
func New(src io.Reader) *Reader {
	return &Reader{src: src}
}

// Mark starts counting bytes consumed by subsequent read primitives.
func (r *Reader) Mark() {
	r.marked = true
	r.count = 0
}

// Unmark stops counting and returns the number of bytes consumed since Mark.
func (r *Reader) Unmark() (int64, error) {
	if !r.marked {
		return 0, ErrNotMarked
	}
	r.marked = false
	return r.count, nil
}

func (r *Reader) add(n int) {
	if r.marked {
		r.count += int64(n)
	}
}

// ReadByte reads exactly one byte.
func (r *Reader) ReadByte() (byte, error) {
	var buf [1]byte
	if err := r.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadExact fills buf completely or returns an error; short reads are
// retried internally and only the net bytes of a successful fill are
// counted, matching the exact-read contract every caller relies on.
func (r *Reader) ReadExact(buf []byte) error {
	n, err := io.ReadFull(r.src, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	r.add(n)
	return nil
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	b, err := r.ReadByte()
	return int8(b), err
}

// ReadUint16LE reads an unsigned little-endian 16-bit integer.
func (r *Reader) ReadUint16LE() (uint16, error) {
	var buf [2]byte
	if err := r.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadUint32LE reads an unsigned little-endian 32-bit integer.
func (r *Reader) ReadUint32LE() (uint32, error) {
	var buf [4]byte
	if err := r.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadUint32BE reads an unsigned big-endian 32-bit integer.
func (r *Reader) ReadUint32BE() (uint32, error) {
	var buf [4]byte
	if err := r.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ReadUint64LE reads an unsigned little-endian 64-bit integer.
func (r *Reader) ReadUint64LE() (uint64, error) {
	var buf [8]byte
	if err := r.ReadExact(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ReadInt16LE reads a signed little-endian 16-bit integer.
func (r *Reader) ReadInt16LE() (int16, error) {
	v, err := r.ReadUint16LE()
	return int16(v), err
}

// ReadInt32LE reads a signed little-endian 32-bit integer.
func (r *Reader) ReadInt32LE() (int32, error) {
	v, err := r.ReadUint32LE()
	return int32(v), err
}

// ReadInt64LE reads a signed little-endian 64-bit integer.
func (r *Reader) ReadInt64LE() (int64, error) {
	v, err := r.ReadUint64LE()
	return int64(v), err
}

// ReadLine reads up to and including a trailing "\r\n", returning the bytes
// without the terminator. Used by the RESP framer for line-oriented reply
// types (SimpleString, Error, Integer, the length prefix of Bulk/Array).
func (r *Reader) ReadLine() ([]byte, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '\n' {
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return line, nil
		}
		line = append(line, b)
	}
}

// Underlying exposes the wrapped reader, e.g. so a caller can install a
// fresh io.LimitReader around it for the duration of an RDB body.
func (r *Reader) Underlying() io.Reader { return r.src }

// Rebind swaps the underlying source, e.g. to wrap it in an io.LimitReader
// for the bounded RDB payload and restore the raw connection afterwards.
func (r *Reader) Rebind(src io.Reader) { r.src = src }
