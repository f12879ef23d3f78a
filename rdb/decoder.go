// Package rdb decodes the RDB snapshot format: a self-describing binary
// stream of typed records, each optionally preceded by expiry metadata,
// walked from a current database context that Select-DB opcodes update.
package rdb

import (
	"fmt"
	"io"
	"strconv"

	"golang.org/x/time/rate"

	"redisreplica/internal/ioframe"
	"redisreplica/internal/logger"
)

// Decoder walks one RDB byte stream, invoking a Handler once per decoded
// record. It holds no state beyond what a single pass over the stream
// needs: the current database index and the expiry pending on the next
// keyed record.
type Decoder struct {
	r       *ioframe.Reader
	handler Handler
	modules ModuleParser

	rdbVersion int
	currentDB  uint32

	trace *rate.Limiter
}

// New constructs a Decoder reading from r and delivering events to handler.
// modules may be nil, in which case module-aux and module v2 records are
// captured as opaque payload bytes rather than further decoded, and module
// v1 records are rejected with ErrUnsupportedType.
func New(r *ioframe.Reader, handler Handler, modules ModuleParser) *Decoder {
	return &Decoder{r: r, handler: handler, modules: modules}
}

// WithTrace enables rate-limited per-object DEBUG logging during Run, so a
// multi-million-key snapshot doesn't flood the log file. A nil limiter (the
// default) disables tracing entirely.
func (d *Decoder) WithTrace(lim *rate.Limiter) *Decoder {
	d.trace = lim
	return d
}

func (d *Decoder) traceObject(typeCode byte, key string) {
	if d.trace == nil || !d.trace.Allow() {
		return
	}
	logger.Debug("rdb: decoding key %q type=%d db=%d", key, typeCode, d.currentDB)
}

// ParseHeader reads and validates the 9-byte "REDIS" + 4-digit-version
// magic that opens every RDB stream.
func (d *Decoder) ParseHeader() error {
	var magic [9]byte
	if err := d.r.ReadExact(magic[:]); err != nil {
		return err
	}
	if string(magic[0:5]) != "REDIS" {
		return fmt.Errorf("%w: got %q", ErrBadMagic, magic[0:5])
	}
	version, err := strconv.Atoi(string(magic[5:9]))
	if err != nil {
		return fmt.Errorf("%w: non-numeric version %q", ErrBadMagic, magic[5:9])
	}
	d.rdbVersion = version
	return nil
}

// Run decodes the opcode stream following the header until it emits EOR,
// the final event, and then returns the handler's result for it. Any error
// aborts decoding immediately; events already delivered to the handler are
// not rolled back.
func (d *Decoder) Run() error {
	var pendingExpire *Meta
	for {
		op, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		switch op {
		case opSelectDB:
			n, _, err := readLength(d.r)
			if err != nil {
				return err
			}
			d.currentDB = uint32(n)
		case opResizeDB:
			if _, _, err := readLength(d.r); err != nil {
				return err
			}
			if _, _, err := readLength(d.r); err != nil {
				return err
			}
		case opAux:
			key, err := readString(d.r)
			if err != nil {
				return err
			}
			val, err := readString(d.r)
			if err != nil {
				return err
			}
			if err := d.emit(AuxEvent{Key: key, Value: val}); err != nil {
				return err
			}
		case opExpireSec:
			secs, err := d.r.ReadUint32LE()
			if err != nil {
				return err
			}
			pendingExpire = &Meta{ExpireType: ExpireSeconds, ExpireTime: int64(secs)}
		case opExpireMs:
			ms, err := d.r.ReadUint64LE()
			if err != nil {
				return err
			}
			pendingExpire = &Meta{ExpireType: ExpireMilliseconds, ExpireTime: int64(ms)}
		case opIdle:
			if _, _, err := readLength(d.r); err != nil {
				return err
			}
		case opFreq:
			if _, err := d.r.ReadByte(); err != nil {
				return err
			}
		case opModuleAux:
			moduleID, err := readModuleID(d.r)
			if err != nil {
				return err
			}
			payload, err := skipModulePayload(d.r)
			if err != nil {
				return err
			}
			if d.modules != nil {
				if decoded, err := d.modules.ParseModuleAux(moduleID, payload); err == nil {
					payload = decoded
				}
			}
			if err := d.emit(ModuleEvent{ModuleID: moduleID, Payload: payload}); err != nil {
				return err
			}
		case opFunction2, opFunctionPre:
			payload, err := readString(d.r)
			if err != nil {
				return err
			}
			if err := d.emit(FunctionEvent{Payload: payload}); err != nil {
				return err
			}
		case opEOF:
			var checksum uint64
			// Older RDB versions omit the trailing CRC64 entirely.
			if d.rdbVersion >= 5 {
				var err error
				checksum, err = d.r.ReadUint64LE()
				if err != nil && err != io.EOF {
					return err
				}
			}
			return d.emit(EOREvent{Checksum: checksum})
		default:
			meta := Meta{DB: d.currentDB}
			if pendingExpire != nil {
				meta.ExpireType = pendingExpire.ExpireType
				meta.ExpireTime = pendingExpire.ExpireTime
				pendingExpire = nil
			}
			if err := d.parseObject(op, meta); err != nil {
				return err
			}
		}
	}
}

// parseObject reads one (key, value) pair given the value-type opcode
// already consumed, and emits the corresponding typed Event.
func (d *Decoder) parseObject(typeCode byte, meta Meta) error {
	key, err := readString(d.r)
	if err != nil {
		return err
	}
	keyStr := string(key)
	d.traceObject(typeCode, keyStr)

	switch typeCode {
	case typeString:
		val, err := readString(d.r)
		if err != nil {
			return err
		}
		return d.emit(StringEvent{Key: keyStr, Value: val, Meta: meta})

	case typeList:
		values, err := readStringSequence(d.r)
		if err != nil {
			return err
		}
		return d.emit(ListEvent{Key: keyStr, Values: values, Meta: meta})

	case typeSet:
		members, err := readStringSequence(d.r)
		if err != nil {
			return err
		}
		return d.emit(SetEvent{Key: keyStr, Members: members, Meta: meta})

	case typeZSet:
		n, _, err := readLength(d.r)
		if err != nil {
			return err
		}
		items := make([]ZSetItem, n)
		for i := range items {
			member, err := readString(d.r)
			if err != nil {
				return err
			}
			score, err := readDouble(d.r)
			if err != nil {
				return err
			}
			items[i] = ZSetItem{Member: member, Score: score}
		}
		return d.emit(SortedSetEvent{Key: keyStr, Items: items, Meta: meta})

	case typeZSet2:
		n, _, err := readLength(d.r)
		if err != nil {
			return err
		}
		items := make([]ZSetItem, n)
		for i := range items {
			member, err := readString(d.r)
			if err != nil {
				return err
			}
			score, err := readBinaryDouble(d.r)
			if err != nil {
				return err
			}
			items[i] = ZSetItem{Member: member, Score: score}
		}
		return d.emit(SortedSetEvent{Key: keyStr, Items: items, Meta: meta})

	case typeHash:
		n, _, err := readLength(d.r)
		if err != nil {
			return err
		}
		fields := make([]HashField, n)
		for i := range fields {
			name, err := readString(d.r)
			if err != nil {
				return err
			}
			value, err := readString(d.r)
			if err != nil {
				return err
			}
			fields[i] = HashField{Name: name, Value: value}
		}
		return d.emit(HashEvent{Key: keyStr, Fields: fields, Meta: meta})

	case typeModule, typeModule2:
		moduleID, err := readModuleID(d.r)
		if err != nil {
			return err
		}
		if typeCode == typeModule && d.modules == nil {
			return fmt.Errorf("%w: module v1 key %q requires a ModuleParser", ErrUnsupportedType, keyStr)
		}
		payload, err := skipModulePayload(d.r)
		if err != nil {
			return err
		}
		if d.modules != nil {
			if decoded, err := d.modules.ParseModule(moduleID, payload); err == nil {
				payload = decoded
			}
		}
		return d.emit(ModuleEvent{Key: keyStr, ModuleID: moduleID, Payload: payload, Meta: meta})

	case typeHashZipmap:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		fields, err := parseZipmap(blob)
		if err != nil {
			return err
		}
		return d.emit(HashEvent{Key: keyStr, Fields: fields, Meta: meta})

	case typeListZiplist:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		values, err := parseZiplist(blob)
		if err != nil {
			return err
		}
		return d.emit(ListEvent{Key: keyStr, Values: values, Meta: meta})

	case typeSetIntset:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		members, err := parseIntset(blob)
		if err != nil {
			return err
		}
		return d.emit(SetEvent{Key: keyStr, Members: members, Meta: meta})

	case typeZSetZiplist:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		flat, err := parseZiplist(blob)
		if err != nil {
			return err
		}
		items, err := pairsToZSetItems(flat)
		if err != nil {
			return err
		}
		return d.emit(SortedSetEvent{Key: keyStr, Items: items, Meta: meta})

	case typeHashZiplist:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		flat, err := parseZiplist(blob)
		if err != nil {
			return err
		}
		return d.emit(HashEvent{Key: keyStr, Fields: pairsToFields(flat), Meta: meta})

	case typeListQuicklist:
		n, _, err := readLength(d.r)
		if err != nil {
			return err
		}
		var values [][]byte
		for i := uint64(0); i < n; i++ {
			blob, err := readString(d.r)
			if err != nil {
				return err
			}
			part, err := parseZiplist(blob)
			if err != nil {
				return err
			}
			values = append(values, part...)
		}
		return d.emit(ListEvent{Key: keyStr, Values: values, Meta: meta})

	case typeListQuicklist2:
		n, _, err := readLength(d.r)
		if err != nil {
			return err
		}
		var values [][]byte
		for i := uint64(0); i < n; i++ {
			container, _, err := readLength(d.r)
			if err != nil {
				return err
			}
			blob, err := readString(d.r)
			if err != nil {
				return err
			}
			if container == rdbListQuicklistPlain {
				values = append(values, blob)
				continue
			}
			part, err := parseListpack(blob)
			if err != nil {
				return err
			}
			values = append(values, part...)
		}
		return d.emit(ListEvent{Key: keyStr, Values: values, Meta: meta})

	case typeHashListpack:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		flat, err := parseListpack(blob)
		if err != nil {
			return err
		}
		return d.emit(HashEvent{Key: keyStr, Fields: pairsToFields(flat), Meta: meta})

	case typeZSetListpack:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		flat, err := parseListpack(blob)
		if err != nil {
			return err
		}
		items, err := pairsToZSetItems(flat)
		if err != nil {
			return err
		}
		return d.emit(SortedSetEvent{Key: keyStr, Items: items, Meta: meta})

	case typeSetListpack:
		blob, err := readString(d.r)
		if err != nil {
			return err
		}
		members, err := parseListpack(blob)
		if err != nil {
			return err
		}
		return d.emit(SetEvent{Key: keyStr, Members: members, Meta: meta})

	case typeStreamListpacks:
		stream, err := parseStream(d.r, d.rdbVersion)
		if err != nil {
			return err
		}
		stream.Key = keyStr
		stream.Meta = meta
		return d.emit(*stream)

	default:
		return fmt.Errorf("%w: code %d for key %q", ErrUnsupportedType, typeCode, keyStr)
	}
}

func (d *Decoder) emit(ev Event) error {
	if d.handler == nil {
		return nil
	}
	return d.handler.HandleRDBEvent(ev)
}

// readStringSequence reads a length followed by that many length-prefixed
// strings, the shape shared by the classic List and Set encodings.
func readStringSequence(r *ioframe.Reader) ([][]byte, error) {
	n, _, err := readLength(r)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func pairsToFields(flat [][]byte) []HashField {
	fields := make([]HashField, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		fields = append(fields, HashField{Name: flat[i], Value: flat[i+1]})
	}
	return fields
}

func pairsToZSetItems(flat [][]byte) ([]ZSetItem, error) {
	items := make([]ZSetItem, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		score, err := strconv.ParseFloat(string(flat[i+1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed packed zset score %q: %v", ErrDecode, flat[i+1], err)
		}
		items = append(items, ZSetItem{Member: flat[i], Score: score})
	}
	return items, nil
}
