package redisreplica

// State names the handshake state machine's positions. Driver.setState
// records the current one and logs the transition; the state itself never
// drives branching; that's plain Go control flow in driver.go and
// handshake.go, not a table the way the teacher's Dragonfly FLOW state
// machine needed one (that protocol has many more concurrent flows to
// track than a single replica connection does).
type State int

const (
	StateInit State = iota
	StateAuth
	StateReplconf
	StatePsync
	StateWait
	StateSyncFallback
	StateFullSync
	StateStream
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAuth:
		return "AUTH"
	case StateReplconf:
		return "REPLCONF"
	case StatePsync:
		return "PSYNC"
	case StateWait:
		return "WAIT"
	case StateSyncFallback:
		return "SYNC_FALLBACK"
	case StateFullSync:
		return "FULL_SYNC"
	case StateStream:
		return "STREAM"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
