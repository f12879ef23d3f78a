package redisreplica

import "redisreplica/rdb"

// RDBHandler receives one decoded snapshot object per call. It is the same
// interface the rdb package's Decoder calls directly, re-exported here so
// callers only need to import this package for the common case.
type RDBHandler = rdb.Handler

// ModuleParser optionally decodes module-aux and module-v2 payloads.
type ModuleParser = rdb.ModuleParser

// CommandHandler receives one command from the post-snapshot stream, as
// the raw argument vector of an inbound RESP array (e.g. ["SET", "k",
// "v"]). Turning that into a domain-specific mutation is the caller's
// responsibility; this library only frames the wire protocol.
type CommandHandler interface {
	HandleCommand(args [][]byte) error
}

// NoOpRDBHandler discards every decoded RDB event. Useful when a caller
// only wants the command stream (is_discard_rdb is usually a better fit
// for that, but this also works if the snapshot must still be walked for
// its side effect of correct offset accounting).
type NoOpRDBHandler struct{}

// HandleRDBEvent implements RDBHandler.
func (NoOpRDBHandler) HandleRDBEvent(rdb.Event) error { return nil }

// NoOpCommandHandler discards every command. Used as the Driver's default
// so a caller doing snapshot-only replication (IsAOF=false) never needs to
// supply one.
type NoOpCommandHandler struct{}

// HandleCommand implements CommandHandler.
func (NoOpCommandHandler) HandleCommand(args [][]byte) error { return nil }
