package redisreplica

import (
	"errors"

	"redisreplica/rdb"
)

// Sentinel errors the driver surfaces from Start. Network and protocol
// failures wrap one of these with fmt.Errorf("...: %w", ...), so callers
// can branch with errors.Is without string-matching messages.
var (
	// ErrConnClosed names a closed connection. No function in this package
	// returns it; operations on a closed connection fail with the
	// underlying network error instead.
	ErrConnClosed = errors.New("redisreplica: connection closed")

	// ErrHandshakeRejected is returned when the master's reply to AUTH,
	// REPLCONF, or PSYNC/SYNC is a shape the handshake doesn't recognize
	// (e.g. a FULLRESYNC reply missing its id or offset field).
	ErrHandshakeRejected = errors.New("redisreplica: handshake rejected by master")

	// ErrShortRead is returned when the number of RDB snapshot bytes
	// discarded or decoded differs from the length its bulk header
	// declared, e.g. when the connection closes part way through a
	// discarded snapshot.
	ErrShortRead = errors.New("redisreplica: short read")

	// ErrNotConfigured is a programmer error: Build was called on a
	// Builder missing a required field (currently: Addr).
	ErrNotConfigured = errors.New("redisreplica: builder missing required configuration")
)

// ErrBadMagic, ErrUnsupportedRDBType, and ErrRDBDecode re-export the RDB
// decoder's sentinel errors so callers need only import this package to
// use errors.Is against a Start() failure, regardless of which layer
// produced it.
var (
	ErrBadMagic           = rdb.ErrBadMagic
	ErrUnsupportedRDBType = rdb.ErrUnsupportedType
	ErrRDBDecode          = rdb.ErrDecode
)
