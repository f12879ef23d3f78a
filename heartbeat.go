package redisreplica

import (
	"strconv"
	"time"

	"redisreplica/internal/logger"
	"redisreplica/internal/resp"
)

// heartbeatInterval is how often REPLCONF ACK is sent while streaming.
// Real Redis considers a replica dead after repl-timeout (60s default) with
// no ACK, so 500ms leaves ample margin.
const heartbeatInterval = 500 * time.Millisecond

// startHeartbeat launches the ACK worker. The worker writes to the same
// net.Conn the stream loop reads from; net.Conn supports concurrent
// Read/Write from different goroutines, so no separate socket handle is
// needed the way a thread-per-connection runtime would require one.
func (d *Driver) startHeartbeat() {
	d.hbMailbox = make(chan int64, 1)
	d.hbStop = make(chan struct{})
	d.hbDone = make(chan struct{})
	go d.heartbeatLoop()
}

// stopHeartbeat signals the worker to exit and waits for it. Safe to call
// when the heartbeat was never started or has already been stopped.
func (d *Driver) stopHeartbeat() {
	if d.hbStop == nil {
		return
	}
	d.hbOnce.Do(func() {
		close(d.hbStop)
		<-d.hbDone
	})
}

// pushOffset hands the worker the latest acknowledged offset without
// blocking the stream loop. If the worker hasn't drained the previous
// value yet, it is overwritten rather than queued: only the most recent
// offset is ever meaningful to ACK.
func (d *Driver) pushOffset(offset int64) {
	if d.hbMailbox == nil {
		return
	}
	select {
	case d.hbMailbox <- offset:
		return
	default:
	}
	select {
	case <-d.hbMailbox:
	default:
	}
	select {
	case d.hbMailbox <- offset:
	default:
		logger.Warn("heartbeat mailbox full, dropped offset %d", offset)
	}
}

// heartbeatLoop sends REPLCONF ACK every heartbeatInterval, using whatever
// offset is freshest at the moment the interval elapses. A message arriving
// mid-interval updates the pending offset but does not reset the clock, so
// a burst of commands never delays the ACK past its schedule.
func (d *Driver) heartbeatLoop() {
	defer close(d.hbDone)

	offset := d.cfg.ReplOffset
	due := time.Now().Add(heartbeatInterval)

	for {
		wait := time.Until(due)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-d.hbStop:
			timer.Stop()
			return
		case offset = <-d.hbMailbox:
			timer.Stop()
		case <-timer.C:
		}

		if time.Now().Before(due) {
			continue
		}
		if err := d.sendAck(offset); err != nil {
			logger.Warn("heartbeat: REPLCONF ACK failed: %v", err)
			return
		}
		due = time.Now().Add(heartbeatInterval)
	}
}

func (d *Driver) sendAck(offset int64) error {
	if err := d.setWriteDeadline(); err != nil {
		return err
	}
	ack := resp.Encode([]byte("REPLCONF"), []byte("ACK"), []byte(strconv.FormatInt(offset, 10)))
	_, err := d.conn.Write(ack)
	return err
}
