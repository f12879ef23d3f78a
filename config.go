package redisreplica

import "time"

// Config holds the handshake parameters the driver needs. ReplID and
// ReplOffset are the only two fields the driver mutates after
// construction, as the handshake negotiates a replication position.
type Config struct {
	// Addr is the master's "host:port".
	Addr string

	// Password, if non-empty, is sent via AUTH before REPLCONF.
	Password string

	// ReadTimeout and WriteTimeout bound individual socket operations.
	// Zero means no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// IsDiscardRDB skips parsing the RDB snapshot: its bytes are read and
	// thrown away, rather than handed to the rdb decoder.
	IsDiscardRDB bool

	// IsAOF keeps the connection open after the snapshot to receive the
	// ongoing command stream and run the heartbeat. When false, Start
	// returns once the snapshot (or its discard) completes.
	IsAOF bool

	// ReplID is the opaque replication id PSYNC negotiates. Pass "?" (the
	// default NewBuilder applies) to request a full resync.
	ReplID string

	// ReplOffset is the replication offset to resume from. Pass -1 (the
	// zero Config's default, applied by Builder) to request a full
	// resync alongside ReplID="?".
	ReplOffset int64

	// CaptureRDBPath, if non-empty, mirrors the raw RDB snapshot bytes to
	// this path as a zstd-compressed file for offline troubleshooting.
	CaptureRDBPath string

	// CaptureStreamPath, if non-empty, mirrors every byte read from the
	// connection (handshake replies and the command stream alike) to this
	// path as an lz4-compressed file.
	CaptureStreamPath string
}
