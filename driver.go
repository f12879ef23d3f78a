package redisreplica

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"redisreplica/internal/diagnostics"
	"redisreplica/internal/ioframe"
	"redisreplica/internal/logger"
	"redisreplica/internal/resp"
	"redisreplica/rdb"
)

// Driver owns the TCP connection to the master and runs the handshake
// state machine, then (when configured for AOF-style streaming) the
// command loop and its heartbeat worker. A Driver is single-use: call
// Start once; to reconnect, build a new one.
type Driver struct {
	cfg Config

	rdbHandler rdb.Handler
	cmdHandler CommandHandler
	modules    rdb.ModuleParser
	running    *atomic.Bool
	rdbTrace   *rate.Limiter

	conn  net.Conn
	r     *ioframe.Reader
	mode  mode
	state State

	hbMailbox chan int64
	hbStop    chan struct{}
	hbDone    chan struct{}
	hbOnce    sync.Once

	streamCapture io.WriteCloser

	closeOnce sync.Once
	closeErr  error
}

type mode int

const (
	modePSync mode = iota
	modeSync
)

// Start drives the connection through the handshake, the snapshot, and (if
// configured) the command stream, returning on the first fatal error or
// when the running flag is cleared. The heartbeat worker, if started, is
// always stopped before Start returns.
func (d *Driver) Start() error {
	d.setState(StateInit)
	if err := d.connect(); err != nil {
		return fmt.Errorf("redisreplica: connect: %w", err)
	}
	defer d.conn.Close()

	d.setState(StateAuth)
	if err := d.auth(); err != nil {
		return err
	}
	d.setState(StateReplconf)
	if err := d.sendReplconfPort(); err != nil {
		return err
	}

	d.setState(StatePsync)
	for {
		proceed, err := d.attemptSync()
		if err != nil {
			return err
		}
		if proceed {
			break
		}
		if !d.running.Load() {
			return nil
		}
		d.setState(StateWait)
		time.Sleep(5 * time.Second)
		d.setState(StatePsync)
	}

	if d.mode == modeSync || !d.cfg.IsAOF {
		d.setState(StateDone)
		return nil
	}

	d.setState(StateStream)
	d.startHeartbeat()
	err := d.streamLoop()
	d.stopHeartbeat()
	d.setState(StateDone)
	return err
}

// setState records the handshake/stream position and logs the transition.
func (d *Driver) setState(s State) {
	d.state = s
	logger.Debug("state: %s", s)
}

// Close terminates any running heartbeat worker and closes the
// connection. Safe to call more than once and from a different goroutine
// than Start is running on; typically paired with clearing the shared
// running flag so Start's loops notice and return promptly at their next
// boundary.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.running.Store(false)
		d.stopHeartbeat()
		if d.conn != nil {
			d.closeErr = d.conn.Close()
		}
		if d.streamCapture != nil {
			if err := d.streamCapture.Close(); err != nil && d.closeErr == nil {
				d.closeErr = err
			}
		}
	})
	return d.closeErr
}

func (d *Driver) connect() error {
	conn, err := net.Dial("tcp", d.cfg.Addr)
	if err != nil {
		return err
	}
	d.conn = conn

	var src io.Reader = conn
	if d.cfg.CaptureStreamPath != "" {
		cap, err := diagnostics.NewStreamCapture(d.cfg.CaptureStreamPath)
		if err != nil {
			conn.Close()
			return fmt.Errorf("redisreplica: opening stream capture: %w", err)
		}
		d.streamCapture = cap
		src = io.TeeReader(conn, cap)
		logger.Info("capturing raw stream bytes to %s", d.cfg.CaptureStreamPath)
	}

	d.r = ioframe.New(bufio.NewReaderSize(src, 64*1024))
	logger.Info("connected to master %s", d.cfg.Addr)
	return nil
}

func (d *Driver) setReadDeadline() error {
	if d.cfg.ReadTimeout <= 0 {
		return nil
	}
	return d.conn.SetReadDeadline(time.Now().Add(d.cfg.ReadTimeout))
}

func (d *Driver) setWriteDeadline() error {
	if d.cfg.WriteTimeout <= 0 {
		return nil
	}
	return d.conn.SetWriteDeadline(time.Now().Add(d.cfg.WriteTimeout))
}

// sendCommand writes a RESP array command and decodes exactly one reply.
func (d *Driver) sendCommand(args ...[]byte) (resp.Value, error) {
	if err := d.setWriteDeadline(); err != nil {
		return resp.Value{}, err
	}
	if _, err := d.conn.Write(resp.Encode(args...)); err != nil {
		return resp.Value{}, err
	}
	if err := d.setReadDeadline(); err != nil {
		return resp.Value{}, err
	}
	return resp.Decode(d.r)
}

func (d *Driver) auth() error {
	if d.cfg.Password == "" {
		return nil
	}
	v, err := d.sendCommand([]byte("AUTH"), []byte(d.cfg.Password))
	if err != nil {
		return fmt.Errorf("redisreplica: AUTH: %w", err)
	}
	if v.IsError() {
		return fmt.Errorf("%w: AUTH: %s", ErrHandshakeRejected, v.Str)
	}
	return nil
}

func (d *Driver) sendReplconfPort() error {
	tcpAddr, ok := d.conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("redisreplica: connection is not TCP, cannot report listening-port")
	}
	port := fmt.Sprintf("%d", tcpAddr.Port)
	v, err := d.sendCommand([]byte("REPLCONF"), []byte("listening-port"), []byte(port))
	if err != nil {
		return fmt.Errorf("redisreplica: REPLCONF listening-port: %w", err)
	}
	if v.IsError() {
		return fmt.Errorf("%w: REPLCONF listening-port: %s", ErrHandshakeRejected, v.Str)
	}
	return nil
}
