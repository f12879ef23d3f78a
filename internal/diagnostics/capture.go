// Package diagnostics implements optional raw-traffic capture for offline
// troubleshooting: the RDB snapshot and the command stream can each be
// mirrored to a compressed file as they're read off the wire, without
// altering how the driver itself decodes them.
package diagnostics

import (
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// rdbCapture wraps a zstd writer and the file it owns so Close releases both.
type rdbCapture struct {
	enc  *zstd.Encoder
	file *os.File
}

func (c *rdbCapture) Write(p []byte) (int, error) { return c.enc.Write(p) }

func (c *rdbCapture) Close() error {
	if err := c.enc.Close(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

// NewRDBCapture opens path and returns a WriteCloser that zstd-compresses
// everything written to it — the RDB snapshot is a one-shot bulk transfer,
// and zstd's ratio matters more than per-chunk latency here.
func NewRDBCapture(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rdbCapture{enc: enc, file: f}, nil
}

// streamCapture wraps an lz4 writer and the file it owns.
type streamCapture struct {
	w    *lz4.Writer
	file *os.File
}

func (c *streamCapture) Write(p []byte) (int, error) { return c.w.Write(p) }

func (c *streamCapture) Close() error {
	if err := c.w.Close(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

// NewStreamCapture opens path and returns a WriteCloser that lz4-compresses
// everything written to it. lz4's low per-call overhead suits the command
// stream, which arrives as many small writes rather than one bulk transfer.
func NewStreamCapture(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := lz4.NewWriter(f)
	return &streamCapture{w: w, file: f}, nil
}
