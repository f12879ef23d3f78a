package redisreplica

import (
	"errors"
	"fmt"
	"net"

	"redisreplica/internal/resp"
)

// streamLoop reads the post-snapshot command stream one RESP array at a
// time, advances the replication offset by exactly the bytes each command
// occupied on the wire, and hands the decoded arguments to the command
// handler. It returns when the running flag is cleared or a non-timeout
// error occurs.
func (d *Driver) streamLoop() error {
	for d.running.Load() {
		if err := d.setReadDeadline(); err != nil {
			return fmt.Errorf("redisreplica: command stream: %w", err)
		}
		d.r.Mark()
		v, err := resp.Decode(d.r)
		if err != nil {
			d.r.Unmark()
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("redisreplica: command stream: %w", err)
		}
		n, _ := d.r.Unmark()
		d.cfg.ReplOffset += n
		d.pushOffset(d.cfg.ReplOffset)

		args, err := resp.ArrayOfBulk(v)
		if err != nil {
			return fmt.Errorf("redisreplica: command stream: %w", err)
		}
		if len(args) == 0 {
			continue // master's periodic empty-array keep-alive
		}
		if err := d.cmdHandler.HandleCommand(args); err != nil {
			return fmt.Errorf("redisreplica: command handler: %w", err)
		}
	}
	return nil
}

// isTimeout reports whether err is a deadline expiry rather than a real
// connection failure, so the stream loop can treat it as an idle tick.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
