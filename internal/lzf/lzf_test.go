package lzf

import "testing"

func TestDecompressLiteralRun(t *testing.T) {
	// ctrl=4 means a literal run of 5 bytes.
	src := []byte{4, 'h', 'e', 'l', 'l', 'o'}
	got, err := Decompress(src, 5)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestDecompressBackReference(t *testing.T) {
	// "abcabc": literal run "abc" (ctrl=2), then a back-reference copying 3
	// bytes from offset 3 back (ref length field = 1 -> length 3, offset=2).
	src := []byte{2, 'a', 'b', 'c', 0x20, 2}
	got, err := Decompress(src, 6)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(got) != "abcabc" {
		t.Fatalf("got %q, want %q", got, "abcabc")
	}
}

func TestDecompressOverlappingReference(t *testing.T) {
	// "aaaaa": one literal 'a' then a back-reference that overlaps itself,
	// copying from offset 1 (the single literal) for length 4.
	src := []byte{0, 'a', 0x40, 0}
	got, err := Decompress(src, 5)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if string(got) != "aaaaa" {
		t.Fatalf("got %q, want %q", got, "aaaaa")
	}
}

func TestDecompressLengthMismatch(t *testing.T) {
	src := []byte{4, 'h', 'e', 'l', 'l', 'o'}
	if _, err := Decompress(src, 4); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestDecompressTruncatedLiteral(t *testing.T) {
	src := []byte{4, 'h', 'e'}
	if _, err := Decompress(src, 5); err == nil {
		t.Fatal("expected error for truncated literal run")
	}
}

func TestDecompressBadBackReference(t *testing.T) {
	// Back-reference pointing before the start of output.
	src := []byte{0x20 | 1, 0}
	if _, err := Decompress(src, 3); err == nil {
		t.Fatal("expected error for out-of-range back-reference")
	}
}
