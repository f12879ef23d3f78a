package rdb

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"testing"

	"redisreplica/internal/ioframe"
)

// recorder accumulates every event handed to it, in order.
type recorder struct {
	events []Event
}

func (r *recorder) HandleRDBEvent(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func len6(n int) byte { return byte(n & 0x3f) }

// str6 appends a 6-bit-length-prefixed string literal.
func str6(buf []byte, s string) []byte {
	buf = append(buf, len6(len(s)))
	return append(buf, s...)
}

func header(buf []byte) []byte {
	return append(buf, []byte("REDIS0011")...)
}

// blob6 appends a 6-bit-length-prefixed raw byte blob, the framing every
// packed-container value (ziplist/intset/listpack) is itself wrapped in.
func blob6(buf []byte, b []byte) []byte {
	buf = append(buf, len6(len(b)))
	return append(buf, b...)
}

// dbl appends a legacy (ZSet v1) double: a raw length byte followed by
// that many ASCII bytes, per readDouble.
func dbl(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}

// buildListpack constructs a minimal valid listpack blob holding the given
// strings, all short enough for the 6-bit-length string entry form.
func buildListpack(values []string) []byte {
	var entries []byte
	for _, v := range values {
		entries = append(entries, 0x80|byte(len(v)&0x3f))
		entries = append(entries, v...)
		entries = append(entries, make([]byte, lpEncodeBacklenSize(1+len(v)))...)
	}
	entries = append(entries, zipTerminator)

	buf := make([]byte, 6)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(6+len(entries)))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(values)))
	return append(buf, entries...)
}

// buildIntset constructs a minimal valid intset blob of the given encoding
// width holding vals, already sorted ascending as the real format requires.
func buildIntset(width int, vals []int64) []byte {
	var raw []byte
	raw = append(raw, byte(width), 0, 0, 0)
	raw = append(raw, byte(len(vals)), 0, 0, 0)
	for _, v := range vals {
		buf := make([]byte, width)
		for i := 0; i < width; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		raw = append(raw, buf...)
	}
	return raw
}

func TestDecoderSimpleStringRoundTrip(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, typeString)
	raw = str6(raw, "mykey")
	raw = str6(raw, "myvalue")
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...) // zero checksum

	rec := &recorder{}
	d := New(ioframe.New(bytes.NewReader(raw)), rec, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.events) != 2 {
		t.Fatalf("got %d events, want 2 (String, EOR)", len(rec.events))
	}
	s, ok := rec.events[0].(StringEvent)
	if !ok || s.Key != "mykey" || string(s.Value) != "myvalue" {
		t.Fatalf("got %+v", rec.events[0])
	}
	if _, ok := rec.events[1].(EOREvent); !ok {
		t.Fatalf("last event is %T, want EOREvent", rec.events[1])
	}
}

func TestDecoderExpiryMetadata(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, opExpireMs)
	raw = append(raw, 0x3D, 0xD8, 0xC3, 0x48, 0x85, 0x01, 0x00, 0x00) // little-endian ms timestamp
	raw = append(raw, typeString)
	raw = str6(raw, "expires_ms_precision")
	raw = str6(raw, "2022-12-25 10:11:12.573 UTC")
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	rec := &recorder{}
	d := New(ioframe.New(bytes.NewReader(raw)), rec, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := rec.events[0].(StringEvent)
	if s.Meta.ExpireType != ExpireMilliseconds {
		t.Fatalf("got expire type %v, want Milliseconds", s.Meta.ExpireType)
	}
	if s.Meta.ExpireTime != 1671963072573 {
		t.Fatalf("got expire time %d, want 1671963072573", s.Meta.ExpireTime)
	}
}

func TestDecoderMultipleDatabases(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, opSelectDB, len6(0))
	raw = append(raw, typeString)
	raw = str6(raw, "key_in_zeroth_database")
	raw = str6(raw, "zero")
	raw = append(raw, opSelectDB, len6(2))
	raw = append(raw, typeString)
	raw = str6(raw, "key_in_second_database")
	raw = str6(raw, "second")
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	rec := &recorder{}
	d := New(ioframe.New(bytes.NewReader(raw)), rec, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.events) != 3 {
		t.Fatalf("got %d events, want 3", len(rec.events))
	}
	first := rec.events[0].(StringEvent)
	if first.Key != "key_in_zeroth_database" || first.Meta.DB != 0 || string(first.Value) != "zero" {
		t.Fatalf("got %+v", first)
	}
	second := rec.events[1].(StringEvent)
	if second.Key != "key_in_second_database" || second.Meta.DB != 2 || string(second.Value) != "second" {
		t.Fatalf("got %+v", second)
	}
}

func TestDecoderIntEncodedString(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, typeString)
	raw = str6(raw, "125")
	// special-encoding int8: 11 000000, value 125
	raw = append(raw, 0xc0, 125)
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	rec := &recorder{}
	d := New(ioframe.New(bytes.NewReader(raw)), rec, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := rec.events[0].(StringEvent)
	if string(s.Value) != "125" {
		t.Fatalf("got %q, want %q", s.Value, "125")
	}
}

func TestDecoderLZFCompressedString(t *testing.T) {
	// "aaaaaaaaaa" (10 bytes) compressed as one literal 'a' plus a
	// back-reference copying 9 more from offset 1 (extended-length form:
	// field=7, extension byte 0 -> len=9).
	compressed := []byte{0, 'a', 0xE0, 0, 0}
	var raw []byte
	raw = header(raw)
	raw = append(raw, typeString)
	raw = str6(raw, "repeated")
	raw = append(raw, 0xc3) // special-encoding LZF selector (11 000011)
	raw = append(raw, len6(len(compressed)))
	raw = append(raw, len6(10))
	raw = append(raw, compressed...)
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	rec := &recorder{}
	d := New(ioframe.New(bytes.NewReader(raw)), rec, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := rec.events[0].(StringEvent)
	if string(s.Value) != "aaaaaaaaaa" {
		t.Fatalf("got %q, want %q", s.Value, "aaaaaaaaaa")
	}
}

func TestDecoderBadMagic(t *testing.T) {
	d := New(ioframe.New(bytes.NewReader([]byte("NOTREDIS1"))), &recorder{}, nil)
	if err := d.ParseHeader(); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecoderUnknownValueType(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, 8) // not a recognized opcode or value type
	raw = str6(raw, "x")

	d := New(ioframe.New(bytes.NewReader(raw)), &recorder{}, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err == nil {
		t.Fatal("expected error for unrecognized opcode")
	}
}

func TestParseZiplistStrings(t *testing.T) {
	values := []string{"aaaaaa", "aaaaaaaaaaaa", "aaaaaaaaaaaaaaaaaa"}
	raw := buildZiplist(t, values)
	got, err := parseZiplist(raw)
	if err != nil {
		t.Fatalf("parseZiplist: %v", err)
	}
	if len(got) != len(values) {
		t.Fatalf("got %d entries, want %d", len(got), len(values))
	}
	for i, v := range values {
		if string(got[i]) != v {
			t.Fatalf("entry %d: got %q, want %q", i, got[i], v)
		}
	}
}

// buildZiplist constructs a minimal valid ziplist blob holding the given
// strings, all short enough for 6-bit length encoding, with 1-byte prevlen
// fields throughout (never triggers the 5-byte big-prevlen form).
func buildZiplist(t *testing.T, values []string) []byte {
	t.Helper()
	var entries []byte
	prevLen := 0
	for _, v := range values {
		entries = append(entries, byte(prevLen))
		entries = append(entries, byte(len(v)&0x3f))
		entries = append(entries, v...)
		prevLen = 2 + len(v)
	}
	entries = append(entries, zipTerminator)

	buf := make([]byte, 10)
	totalLen := uint32(10 + len(entries))
	buf[0] = byte(totalLen)
	buf[1] = byte(totalLen >> 8)
	buf[2] = byte(totalLen >> 16)
	buf[3] = byte(totalLen >> 24)
	// zltail left as zero; unused by this decoder.
	buf[8] = byte(len(values))
	buf[9] = byte(len(values) >> 8)
	return append(buf, entries...)
}

func TestParseIntsetWidths(t *testing.T) {
	cases := []struct {
		width int
		vals  []int64
	}{
		{2, []int64{32766, 32765, 32764}},
		{4, []int64{2147418110, 2147418109, 2147418108}},
		{8, []int64{9223090557583032318, 9223090557583032317, 9223090557583032316}},
	}
	for _, c := range cases {
		var raw []byte
		raw = append(raw, byte(c.width), 0, 0, 0)
		raw = append(raw, byte(len(c.vals)), 0, 0, 0)
		for _, v := range c.vals {
			buf := make([]byte, c.width)
			for i := 0; i < c.width; i++ {
				buf[i] = byte(v >> (8 * i))
			}
			raw = append(raw, buf...)
		}
		got, err := parseIntset(raw)
		if err != nil {
			t.Fatalf("width %d: parseIntset: %v", c.width, err)
		}
		for i, v := range c.vals {
			want := strconv.FormatInt(v, 10)
			if string(got[i]) != want {
				t.Fatalf("width %d entry %d: got %q, want %q", c.width, i, got[i], want)
			}
		}
	}
}

// runDecoder decodes raw through a full Decoder.Run pass and returns every
// recorded event, failing the test on any decode error.
func runDecoder(t *testing.T, raw []byte) []Event {
	t.Helper()
	rec := &recorder{}
	d := New(ioframe.New(bytes.NewReader(raw)), rec, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rec.events
}

func TestDecoderRunHash(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, typeHash)
	raw = str6(raw, "user:1")
	raw = append(raw, len6(2))
	raw = str6(raw, "name")
	raw = str6(raw, "alice")
	raw = str6(raw, "age")
	raw = str6(raw, "30")
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	events := runDecoder(t, raw)
	h, ok := events[0].(HashEvent)
	if !ok || h.Key != "user:1" || len(h.Fields) != 2 {
		t.Fatalf("got %+v", events[0])
	}
	if string(h.Fields[0].Name) != "name" || string(h.Fields[0].Value) != "alice" {
		t.Fatalf("field 0: got %+v", h.Fields[0])
	}
	if string(h.Fields[1].Name) != "age" || string(h.Fields[1].Value) != "30" {
		t.Fatalf("field 1: got %+v", h.Fields[1])
	}
}

func TestDecoderRunListZiplist(t *testing.T) {
	values := []string{"a", "bb", "ccc"}
	zl := buildZiplist(t, values)

	var raw []byte
	raw = header(raw)
	raw = append(raw, typeListZiplist)
	raw = str6(raw, "mylist")
	raw = blob6(raw, zl)
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	events := runDecoder(t, raw)
	l, ok := events[0].(ListEvent)
	if !ok || l.Key != "mylist" || len(l.Values) != len(values) {
		t.Fatalf("got %+v", events[0])
	}
	for i, v := range values {
		if string(l.Values[i]) != v {
			t.Fatalf("value %d: got %q, want %q", i, l.Values[i], v)
		}
	}
}

func TestDecoderRunSetIntsetViaOpcode(t *testing.T) {
	vals := []int64{10, 20, 30}
	blob := buildIntset(2, vals)

	var raw []byte
	raw = header(raw)
	raw = append(raw, typeSetIntset)
	raw = str6(raw, "myset")
	raw = blob6(raw, blob)
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	events := runDecoder(t, raw)
	s, ok := events[0].(SetEvent)
	if !ok || s.Key != "myset" || len(s.Members) != len(vals) {
		t.Fatalf("got %+v", events[0])
	}
	for i, v := range vals {
		want := strconv.FormatInt(v, 10)
		if string(s.Members[i]) != want {
			t.Fatalf("member %d: got %q, want %q", i, s.Members[i], want)
		}
	}
}

func TestDecoderRunZSet(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, typeZSet)
	raw = str6(raw, "scores")
	raw = append(raw, len6(2))
	raw = str6(raw, "alice")
	raw = dbl(raw, "1.5")
	raw = str6(raw, "bob")
	raw = dbl(raw, "2.75")
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	events := runDecoder(t, raw)
	z, ok := events[0].(SortedSetEvent)
	if !ok || z.Key != "scores" || len(z.Items) != 2 {
		t.Fatalf("got %+v", events[0])
	}
	if string(z.Items[0].Member) != "alice" || z.Items[0].Score != 1.5 {
		t.Fatalf("item 0: got %+v", z.Items[0])
	}
	if string(z.Items[1].Member) != "bob" || z.Items[1].Score != 2.75 {
		t.Fatalf("item 1: got %+v", z.Items[1])
	}
}

func TestDecoderRunModuleV2(t *testing.T) {
	var raw []byte
	raw = header(raw)
	raw = append(raw, typeModule2)
	raw = str6(raw, "modkey")
	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], 0x1234)
	raw = append(raw, idBuf[:]...)
	raw = append(raw, moduleOpEOF) // empty field stream: straight to EOF

	events := runDecoderNoTrailer(t, raw)
	m, ok := events[0].(ModuleEvent)
	if !ok || m.Key != "modkey" || m.ModuleID != 0x1234 {
		t.Fatalf("got %+v", events[0])
	}
	if len(m.Payload) != 1 || m.Payload[0] != moduleOpEOF {
		t.Fatalf("payload: got %v, want [0]", m.Payload)
	}
}

func TestDecoderRunListpack(t *testing.T) {
	members := []string{"x", "yy"}
	lp := buildListpack(members)

	var raw []byte
	raw = header(raw)
	raw = append(raw, typeSetListpack)
	raw = str6(raw, "lpset")
	raw = blob6(raw, lp)
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	events := runDecoder(t, raw)
	s, ok := events[0].(SetEvent)
	if !ok || s.Key != "lpset" || len(s.Members) != len(members) {
		t.Fatalf("got %+v", events[0])
	}
	for i, v := range members {
		if string(s.Members[i]) != v {
			t.Fatalf("member %d: got %q, want %q", i, s.Members[i], v)
		}
	}
}

func TestDecoderRunStream(t *testing.T) {
	lp := buildListpack([]string{"field", "value"})

	var raw []byte
	raw = header(raw) // version 11: both the v2 and v3 stream fields are present
	raw = append(raw, typeStreamListpacks)
	raw = str6(raw, "mystream")
	raw = append(raw, len6(1)) // one listpack-encoded entry run
	raw = str6(raw, "entry-id-0")
	raw = blob6(raw, lp)
	raw = append(raw, len6(1)) // length
	raw = append(raw, len6(0)) // last-id ms
	raw = append(raw, len6(5)) // last-id seq
	raw = append(raw, len6(0)) // first-id ms
	raw = append(raw, len6(0)) // first-id seq
	raw = append(raw, len6(0)) // max-deleted-id ms
	raw = append(raw, len6(0)) // max-deleted-id seq
	raw = append(raw, len6(1)) // entries-added
	raw = append(raw, len6(0)) // num groups
	raw = append(raw, opEOF)
	raw = append(raw, make([]byte, 8)...)

	events := runDecoder(t, raw)
	s, ok := events[0].(StreamEvent)
	if !ok || s.Key != "mystream" {
		t.Fatalf("got %+v", events[0])
	}
	if len(s.Entries) != 1 || string(s.Entries[0].ID) != "entry-id-0" {
		t.Fatalf("entries: got %+v", s.Entries)
	}
	if s.Length != 1 || s.LastID != [2]uint64{0, 5} {
		t.Fatalf("got length=%d lastID=%v", s.Length, s.LastID)
	}
	if len(s.Groups) != 0 {
		t.Fatalf("got %d groups, want 0", len(s.Groups))
	}
}

// runDecoderNoTrailer is runDecoder for payloads that end at EOF without a
// checksum trailer — used by the module test, which stops right after the
// module's own field stream rather than padding out a full RDB tail.
func runDecoderNoTrailer(t *testing.T, raw []byte) []Event {
	t.Helper()
	raw = append(raw, opEOF)
	rec := &recorder{}
	d := New(ioframe.New(bytes.NewReader(raw)), rec, nil)
	if err := d.ParseHeader(); err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return rec.events
}
