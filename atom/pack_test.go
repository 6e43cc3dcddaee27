package atom

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestPackStringLayout(t *testing.T) {
	atoms, err := PackString("abcde")
	if err != nil {
		t.Fatal(err)
	}
	if len(atoms) != 3 {
		t.Fatalf("len = %d, want 3", len(atoms))
	}
	if atoms[0] != String(5) {
		t.Errorf("header = %#08x, want %#08x", uint32(atoms[0]), uint32(String(5)))
	}
	if atoms[1] != 0x64636261 {
		t.Errorf("block 0 = %#08x, want little-endian abcd", uint32(atoms[1]))
	}
	if atoms[2] != 0x00000065 {
		t.Errorf("block 1 = %#08x, want 0x65", uint32(atoms[2]))
	}
}

func TestPackUnpackString(t *testing.T) {
	for n := 0; n <= MaxStringLength; n++ {
		s := strings.Repeat("q", n)
		atoms, err := PackString(s)
		if err != nil {
			t.Fatalf("PackString(len %d): %v", n, err)
		}
		got, used, err := UnpackString(atoms)
		if err != nil {
			t.Fatalf("UnpackString(len %d): %v", n, err)
		}
		if got != s || used != len(atoms) {
			t.Errorf("len %d: got %q (%d atoms), want %d atoms", n, got, used, len(atoms))
		}
	}
}

func TestUnpackStringIgnoresTrailingBytes(t *testing.T) {
	atoms := []Atom{String(5), 0x64636261, 0x7A7A7A65}
	got, _, err := UnpackString(atoms)
	if err != nil {
		t.Fatal(err)
	}
	if got != "abcde" {
		t.Errorf("got %q, want abcde", got)
	}
}

func TestPackStringTooLong(t *testing.T) {
	_, err := PackString(strings.Repeat("x", 256))
	if !errors.Is(err, ErrStringTooLong) {
		t.Errorf("err = %v, want ErrStringTooLong", err)
	}
}

func TestUnpackStringErrors(t *testing.T) {
	if _, _, err := UnpackString([]Atom{Nil()}); !errors.Is(err, ErrNotString) {
		t.Errorf("non-string header: err = %v", err)
	}
	if _, _, err := UnpackString([]Atom{String(9), 0}); !errors.Is(err, ErrMalformedSequence) {
		t.Errorf("short string: err = %v", err)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	tests := []int64{0, 1, -1, math.MinInt64, math.MaxInt64, 1 << 32, -(1 << 32), 0x7FFFFFFF80000000}
	for _, us := range tests {
		high, low := SplitTimestamp(us)
		if got := JoinTimestamp(high, low); got != us {
			t.Errorf("JoinTimestamp(SplitTimestamp(%d)) = %d", us, got)
		}

		atoms := PackTimestamp(us)
		if len(atoms) != 3 || atoms[0].Descriptor() != DescTimestamp {
			t.Fatalf("PackTimestamp(%d) = %v", us, atoms)
		}
		got, err := UnpackTimestamp(atoms)
		if err != nil || got != us {
			t.Errorf("UnpackTimestamp(%d) = %d, %v", us, got, err)
		}
	}
}

func TestUnpackTimestampShort(t *testing.T) {
	if _, err := UnpackTimestamp([]Atom{Timestamp(), 1}); !errors.Is(err, ErrMalformedSequence) {
		t.Errorf("err = %v, want ErrMalformedSequence", err)
	}
	if _, err := UnpackTimestamp([]Atom{Nil()}); err == nil {
		t.Error("expected error for non-timestamp header")
	}
}
