package redisreplica

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"redisreplica/internal/diagnostics"
	"redisreplica/internal/ioframe"
	"redisreplica/internal/logger"
	"redisreplica/internal/resp"
	"redisreplica/rdb"
)

// attemptSync issues one PSYNC (falling back to SYNC if the master doesn't
// know PSYNC) and drives it to completion. It returns proceed=true once the
// replication position is established and, if configured, the snapshot has
// been consumed; proceed=false means the master asked the replica to wait
// (NOMASTERLINK/LOADING) and attemptSync should be called again after the
// retry delay.
func (d *Driver) attemptSync() (bool, error) {
	v, err := d.sendCommand([]byte("PSYNC"), []byte(d.cfg.ReplID), []byte(strconv.FormatInt(d.cfg.ReplOffset, 10)))
	if err != nil {
		return false, fmt.Errorf("redisreplica: PSYNC: %w", err)
	}

	if v.Kind != resp.SimpleString && v.Kind != resp.Error {
		return false, fmt.Errorf("%w: PSYNC: unexpected reply %s", ErrHandshakeRejected, v)
	}
	text := v.Str

	switch {
	case v.Kind == resp.SimpleString && strings.HasPrefix(text, "FULLRESYNC"):
		d.mode = modePSync
		if err := d.applyFullresyncLine(text); err != nil {
			return false, err
		}
		d.setState(StateFullSync)
		logger.Info("PSYNC full resync: id=%s offset=%d", d.cfg.ReplID, d.cfg.ReplOffset)
		if err := d.consumeSnapshot(); err != nil {
			return false, err
		}
		return true, nil

	case v.Kind == resp.SimpleString && strings.HasPrefix(text, "CONTINUE"):
		d.mode = modePSync
		if fields := strings.Fields(text); len(fields) >= 2 {
			d.cfg.ReplID = fields[1]
		}
		logger.Info("PSYNC partial resync accepted at offset=%d", d.cfg.ReplOffset)
		return true, nil

	case v.Kind == resp.Error && (strings.HasPrefix(text, "NOMASTERLINK") || strings.HasPrefix(text, "LOADING")):
		logger.Debug("PSYNC deferred by master: %s", text)
		return false, nil

	case v.Kind == resp.Error && strings.Contains(text, "unknown command") && strings.Contains(text, "PSYNC"):
		logger.Info("master does not support PSYNC, falling back to SYNC")
		return d.syncFallback()

	default:
		return false, fmt.Errorf("%w: PSYNC: %s", ErrHandshakeRejected, text)
	}
}

// applyFullresyncLine parses "FULLRESYNC <replid> <offset>" and updates the
// config in place so a later PSYNC retry (after a dropped connection) can
// request a partial resync from this position.
func (d *Driver) applyFullresyncLine(text string) error {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return fmt.Errorf("%w: malformed FULLRESYNC reply %q", ErrHandshakeRejected, text)
	}
	offset, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed FULLRESYNC offset %q", ErrHandshakeRejected, fields[2])
	}
	d.cfg.ReplID = fields[1]
	d.cfg.ReplOffset = offset
	return nil
}

// syncFallback issues the legacy SYNC command for masters that predate
// PSYNC. SYNC carries no replication id/offset and no CONTINUE path: every
// SYNC is a full resync, and the connection never resumes a stream handler,
// regardless of IsAOF, because there is no way to ACK a position the master
// never gave us.
func (d *Driver) syncFallback() (bool, error) {
	d.mode = modeSync
	d.setState(StateSyncFallback)
	if err := d.setWriteDeadline(); err != nil {
		return false, err
	}
	if _, err := d.conn.Write(resp.Encode([]byte("SYNC"))); err != nil {
		return false, fmt.Errorf("redisreplica: SYNC: %w", err)
	}
	if err := d.consumeSnapshot(); err != nil {
		return false, err
	}
	return true, nil
}

// consumeSnapshot reads the RDB bulk header that immediately follows a
// successful FULLRESYNC/SYNC reply — a "$<len>\r\n" prefix with no trailing
// CRLF on the payload, unlike an ordinary RESP bulk string — and either
// discards or decodes the declared number of bytes.
func (d *Driver) consumeSnapshot() error {
	if err := d.setReadDeadline(); err != nil {
		return err
	}
	n, err := readBulkHeader(d.r)
	if err != nil {
		return fmt.Errorf("redisreplica: RDB bulk header: %w", err)
	}
	logger.Info("receiving RDB snapshot, %d bytes", n)

	underlying := d.r.Underlying()
	var body io.Reader = io.LimitReader(underlying, n)
	if d.cfg.CaptureRDBPath != "" {
		capture, err := diagnostics.NewRDBCapture(d.cfg.CaptureRDBPath)
		if err != nil {
			return fmt.Errorf("redisreplica: opening RDB capture: %w", err)
		}
		defer capture.Close()
		body = io.TeeReader(body, capture)
		logger.Info("capturing RDB snapshot to %s", d.cfg.CaptureRDBPath)
	}
	d.r.Rebind(body)
	defer d.r.Rebind(underlying)

	if d.cfg.IsDiscardRDB {
		copied, err := io.Copy(io.Discard, body)
		if err != nil {
			return fmt.Errorf("redisreplica: discarding RDB: %w", err)
		}
		if copied != n {
			return fmt.Errorf("%w: RDB snapshot: declared %d bytes, discarded %d", ErrShortRead, n, copied)
		}
		return nil
	}

	dec := rdb.New(d.r, d.rdbHandler, d.modules).WithTrace(d.rdbTrace)
	d.r.Mark()
	if err := dec.ParseHeader(); err != nil {
		return fmt.Errorf("redisreplica: RDB header: %w", err)
	}
	if err := dec.Run(); err != nil {
		return fmt.Errorf("redisreplica: RDB body: %w", err)
	}
	consumed, _ := d.r.Unmark()
	if consumed != n {
		return fmt.Errorf("%w: RDB snapshot: declared %d bytes, consumed %d", ErrShortRead, n, consumed)
	}
	return nil
}

// readBulkHeader reads the "$<len>\r\n" framing Redis uses to introduce the
// RDB dump, stopping short of the payload bytes it declares.
func readBulkHeader(r *ioframe.Reader) (int64, error) {
	marker, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if marker != '$' {
		return 0, fmt.Errorf("%w: expected '$' bulk marker, got %q", ErrHandshakeRejected, marker)
	}
	line, err := r.ReadLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed RDB length %q", ErrHandshakeRejected, line)
	}
	return n, nil
}
