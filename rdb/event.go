package rdb

// ExpireType tags whether a key's pending expiry, if any, was declared in
// seconds or milliseconds resolution.
type ExpireType int

const (
	ExpireNone ExpireType = iota
	ExpireSeconds
	ExpireMilliseconds
)

// Meta accompanies every keyed event with the database it belongs to and
// its expiry, if the preceding opcode declared one.
type Meta struct {
	DB         uint32
	ExpireType ExpireType
	ExpireTime int64 // meaningful only when ExpireType != ExpireNone
}

// Event is the tagged union the decoder emits to the handler, one value per
// decoded record. Each concrete type below implements it via an unexported
// marker method, so external code can only ever hold one of the variants
// this package defines.
type Event interface {
	isEvent()
}

// StringEvent is a plain key/value pair, including the ASCII-decimal forms
// produced by the RDB_ENC_INT8/16/32 string encodings.
type StringEvent struct {
	Key   string
	Value []byte
	Meta  Meta
}

func (StringEvent) isEvent() {}

// HashField is one (name, value) pair of a Hash event.
type HashField struct {
	Name  []byte
	Value []byte
}

// HashEvent carries every field of one hash key, decoded from the classic
// field-count-prefixed form or one of the zipmap/ziplist/listpack packings.
type HashEvent struct {
	Key    string
	Fields []HashField
	Meta   Meta
}

func (HashEvent) isEvent() {}

// ListEvent carries every element of one list key, in order.
type ListEvent struct {
	Key    string
	Values [][]byte
	Meta   Meta
}

func (ListEvent) isEvent() {}

// SetEvent carries every member of one set key.
type SetEvent struct {
	Key     string
	Members [][]byte
	Meta    Meta
}

func (SetEvent) isEvent() {}

// ZSetItem is one (member, score) pair of a SortedSet event.
type ZSetItem struct {
	Member []byte
	Score  float64
}

// SortedSetEvent carries every (member, score) pair of one sorted-set key.
type SortedSetEvent struct {
	Key   string
	Items []ZSetItem
	Meta  Meta
}

func (SortedSetEvent) isEvent() {}

// StreamEntry is one listpack-encoded run of stream messages, kept as its
// raw wire bytes: decoding message fields out of it needs the stream's
// field-name deduplication state that only a full consumer has context for,
// so this package exposes the structural skeleton (IDs, group/consumer
// bookkeeping) and hands the message payload through untouched.
type StreamEntry struct {
	ID      []byte // the 16-byte master entry ID this listpack is keyed under
	Listpack []byte
}

// StreamGroup is one consumer group's recorded position and membership.
type StreamGroup struct {
	Name          []byte
	LastDeliveredMS  uint64
	LastDeliveredSeq uint64
	EntriesRead      int64
	Consumers        []StreamConsumer
}

// StreamConsumer is one consumer's last-seen time and pending entry count
// within its group.
type StreamConsumer struct {
	Name           []byte
	SeenTime       uint64
	ActiveTime     uint64
	PendingEntries int64
}

// StreamEvent carries a stream key's listpack runs and consumer-group
// metadata. Field-level message decoding is left to a ModuleParser-style
// consumer that understands the stream's field-name dictionary; by default
// this is a typed placeholder over the raw entries, matching every other
// object type's behavior when no deeper parser is supplied.
type StreamEvent struct {
	Key     string
	Entries []StreamEntry
	Groups  []StreamGroup
	Length  int64
	LastID  [2]uint64 // ms, seq
	Meta    Meta
}

func (StreamEvent) isEvent() {}

// ModuleEvent is a typed placeholder for a module-defined value: the raw
// bytes of the module's save stream, opaque unless a ModuleParser is
// supplied to the Decoder.
type ModuleEvent struct {
	Key     string
	ModuleID uint64
	Payload []byte
	Meta    Meta
}

func (ModuleEvent) isEvent() {}

// FunctionEvent is a typed placeholder for a Redis Function library
// definition blob.
type FunctionEvent struct {
	Payload []byte
}

func (FunctionEvent) isEvent() {}

// AuxEvent surfaces an informational aux field (redis-ver, used-mem, ...)
// read from the stream. These never carry expiry/db metadata.
type AuxEvent struct {
	Key   []byte
	Value []byte
}

func (AuxEvent) isEvent() {}

// EOREvent is the end-of-RDB sentinel, emitted once the trailing checksum
// has been read. No further events follow it.
type EOREvent struct {
	Checksum uint64
}

func (EOREvent) isEvent() {}

// Handler receives one decoded Event per call, synchronously, in stream
// order. Implementations must not retain any byte slice passed in an Event
// past the call unless they copy it first.
type Handler interface {
	HandleRDBEvent(Event) error
}

// ModuleParser optionally decodes module-aux and module-v2 payloads into
// something richer than raw bytes. A nil ModuleParser leaves ModuleEvent's
// Payload as the opaque captured bytes.
type ModuleParser interface {
	ParseModuleAux(moduleID uint64, raw []byte) ([]byte, error)
	ParseModule(moduleID uint64, raw []byte) ([]byte, error)
}
