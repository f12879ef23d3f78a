package redisreplica

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"redisreplica/rdb"
)

// Builder assembles a Driver's configuration, handlers, and shared running
// flag before construction. The zero Builder from NewBuilder already
// requests a full resync ("?", -1), matching the protocol's conventions.
type Builder struct {
	cfg        Config
	rdbHandler rdb.Handler
	cmdHandler CommandHandler
	modules    rdb.ModuleParser
	running    *atomic.Bool
	rdbTrace   *rate.Limiter
}

// NewBuilder returns a Builder defaulted to request a full resync.
func NewBuilder() *Builder {
	return &Builder{
		cfg: Config{
			ReplID:     "?",
			ReplOffset: -1,
		},
	}
}

// WithAddr sets the master's "host:port".
func (b *Builder) WithAddr(addr string) *Builder { b.cfg.Addr = addr; return b }

// WithPassword sets the AUTH password.
func (b *Builder) WithPassword(password string) *Builder { b.cfg.Password = password; return b }

// WithReadTimeout bounds individual reads.
func (b *Builder) WithReadTimeout(d time.Duration) *Builder { b.cfg.ReadTimeout = d; return b }

// WithWriteTimeout bounds individual writes.
func (b *Builder) WithWriteTimeout(d time.Duration) *Builder { b.cfg.WriteTimeout = d; return b }

// WithDiscardRDB skips RDB decoding, reading and dropping the snapshot
// bytes instead.
func (b *Builder) WithDiscardRDB(discard bool) *Builder { b.cfg.IsDiscardRDB = discard; return b }

// WithAOF keeps the connection open for the command stream after the
// snapshot completes.
func (b *Builder) WithAOF(aof bool) *Builder { b.cfg.IsAOF = aof; return b }

// WithReplID resumes from a specific replication id instead of requesting
// a full resync.
func (b *Builder) WithReplID(id string) *Builder { b.cfg.ReplID = id; return b }

// WithReplOffset resumes from a specific offset instead of requesting a
// full resync.
func (b *Builder) WithReplOffset(offset int64) *Builder { b.cfg.ReplOffset = offset; return b }

// WithCaptureRDB enables a zstd-compressed copy of the raw RDB snapshot at
// path, for offline troubleshooting. Empty path (the default) disables it.
func (b *Builder) WithCaptureRDB(path string) *Builder { b.cfg.CaptureRDBPath = path; return b }

// WithCaptureStream enables an lz4-compressed copy of the raw bytes read
// from the connection at path. Empty path (the default) disables it.
func (b *Builder) WithCaptureStream(path string) *Builder { b.cfg.CaptureStreamPath = path; return b }

// WithRDBHandler installs the snapshot object sink. Defaults to
// NoOpRDBHandler if never called.
func (b *Builder) WithRDBHandler(h rdb.Handler) *Builder { b.rdbHandler = h; return b }

// WithCommandHandler installs the command-stream sink. Defaults to
// NoOpCommandHandler if never called.
func (b *Builder) WithCommandHandler(h CommandHandler) *Builder { b.cmdHandler = h; return b }

// WithModuleParser installs an optional decoder for module-aux and
// module-v2 RDB records.
func (b *Builder) WithModuleParser(m rdb.ModuleParser) *Builder { b.modules = m; return b }

// WithRDBTrace enables rate-limited per-object DEBUG logging while decoding
// the snapshot. Disabled (nil) by default.
func (b *Builder) WithRDBTrace(eventsPerSecond rate.Limit, burst int) *Builder {
	b.rdbTrace = rate.NewLimiter(eventsPerSecond, burst)
	return b
}

// WithRunning installs a caller-owned running flag so external code can
// request graceful shutdown by clearing it. Defaults to a Driver-owned
// flag initialized to true if never called.
func (b *Builder) WithRunning(running *atomic.Bool) *Builder { b.running = running; return b }

// Build validates the configuration and returns a ready-to-Start Driver.
func (b *Builder) Build() (*Driver, error) {
	if b.cfg.Addr == "" {
		return nil, ErrNotConfigured
	}
	rdbHandler := b.rdbHandler
	if rdbHandler == nil {
		rdbHandler = NoOpRDBHandler{}
	}
	cmdHandler := b.cmdHandler
	if cmdHandler == nil {
		cmdHandler = NoOpCommandHandler{}
	}
	running := b.running
	if running == nil {
		running = new(atomic.Bool)
		running.Store(true)
	}
	return &Driver{
		cfg:        b.cfg,
		rdbHandler: rdbHandler,
		cmdHandler: cmdHandler,
		modules:    b.modules,
		running:    running,
		rdbTrace:   b.rdbTrace,
	}, nil
}
