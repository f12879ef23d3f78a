package resp

import (
	"bytes"
	"strings"
	"testing"

	"redisreplica/internal/ioframe"
)

func decodeString(t *testing.T, s string) Value {
	t.Helper()
	v, err := Decode(ioframe.New(strings.NewReader(s)))
	if err != nil {
		t.Fatalf("Decode(%q): %v", s, err)
	}
	return v
}

func TestDecodeSimpleString(t *testing.T) {
	v := decodeString(t, "+OK\r\n")
	if v.Kind != SimpleString || v.Str != "OK" {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeError(t *testing.T) {
	v := decodeString(t, "-ERR bad thing\r\n")
	if v.Kind != Error || v.Str != "ERR bad thing" {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeInteger(t *testing.T) {
	v := decodeString(t, ":-42\r\n")
	if v.Kind != Integer || v.Int != -42 {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeBulk(t *testing.T) {
	v := decodeString(t, "$5\r\nhello\r\n")
	if v.Kind != Bulk || string(v.Bulk) != "hello" {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeNullBulk(t *testing.T) {
	v := decodeString(t, "$-1\r\n")
	if v.Kind != Bulk || !v.BulkNull {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeArrayOfBulk(t *testing.T) {
	v := decodeString(t, "*2\r\n$3\r\nSET\r\n$1\r\nx\r\n")
	if v.Kind != Array || len(v.Array) != 2 {
		t.Fatalf("got %+v", v)
	}
	args, err := ArrayOfBulk(v)
	if err != nil {
		t.Fatalf("ArrayOfBulk: %v", err)
	}
	if string(args[0]) != "SET" || string(args[1]) != "x" {
		t.Fatalf("got %q", args)
	}
}

func TestDecodeNestedArray(t *testing.T) {
	v := decodeString(t, "*1\r\n*1\r\n$1\r\na\r\n")
	if v.Kind != Array || len(v.Array) != 1 || v.Array[0].Kind != Array {
		t.Fatalf("got %+v", v)
	}
}

func TestEncodeCommand(t *testing.T) {
	got := Encode([]byte("REPLCONF"), []byte("ACK"), []byte("42"))
	want := "*3\r\n$8\r\nREPLCONF\r\n$3\r\nACK\r\n$2\r\n42\r\n"
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCountingReaderMarksExactBytes(t *testing.T) {
	r := ioframe.New(strings.NewReader("*1\r\n$3\r\nfoo\r\n"))
	r.Mark()
	if _, err := Decode(r); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	n, err := r.Unmark()
	if err != nil {
		t.Fatalf("Unmark: %v", err)
	}
	if n != 13 {
		t.Fatalf("got %d bytes consumed, want 13", n)
	}
}
