package atom

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MaxStringLength is the longest string a header can describe.
const MaxStringLength = 255

var (
	// ErrStringTooLong is returned when packing more than MaxStringLength bytes.
	ErrStringTooLong = errors.New("atom: string too long")

	// ErrMalformedSequence is returned when an atom stream ends while a
	// header still expects member or payload atoms.
	ErrMalformedSequence = errors.New("atom: malformed sequence")

	// ErrNotString is returned when unpacking from an atom that is not a
	// string header.
	ErrNotString = errors.New("atom: not a string header")
)

// PackString returns the header atom for s followed by its payload blocks,
// four bytes per atom in little-endian order. Unused bytes of the last block
// are zero.
func PackString(s string) ([]Atom, error) {
	if len(s) > MaxStringLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
	}
	h := String(uint8(len(s)))
	out := make([]Atom, 0, 1+int(h.AtomCount()))
	out = append(out, h)

	var block [4]byte
	for i := 0; i < len(s); i += 4 {
		block = [4]byte{}
		copy(block[:], s[i:])
		out = append(out, Atom(binary.LittleEndian.Uint32(block[:])))
	}
	return out, nil
}

// UnpackString decodes the string whose header is atoms[0]. It returns the
// string and the number of atoms consumed.
func UnpackString(atoms []Atom) (string, int, error) {
	if len(atoms) == 0 || atoms[0].Descriptor() != DescString {
		return "", 0, ErrNotString
	}
	h := atoms[0]
	blocks := int(h.AtomCount())
	if len(atoms)-1 < blocks {
		return "", 0, fmt.Errorf("%w: string needs %d blocks, %d remain",
			ErrMalformedSequence, blocks, len(atoms)-1)
	}

	ctx := TraceContext{StringData: uint8(blocks), CharCount: h.CharCount()}
	buf := make([]byte, 0, h.CharCount())
	for _, a := range atoms[1 : 1+blocks] {
		buf = ctx.appendChars(buf, a)
	}
	return string(buf), 1 + blocks, nil
}

// SplitTimestamp splits a microsecond count into its high and low halves.
func SplitTimestamp(us int64) (high, low Atom) {
	return Atom(uint64(us) >> 32), Atom(uint32(us))
}

// JoinTimestamp reassembles a count split by SplitTimestamp. The low half
// is unsigned.
func JoinTimestamp(high, low Atom) int64 {
	return int64(high)<<32 | int64(uint32(low))
}

// PackTimestamp returns the timestamp header followed by the two halves.
func PackTimestamp(us int64) []Atom {
	high, low := SplitTimestamp(us)
	return []Atom{Timestamp(), high, low}
}

// UnpackTimestamp decodes a timestamp whose header is atoms[0].
func UnpackTimestamp(atoms []Atom) (int64, error) {
	if len(atoms) == 0 || atoms[0].Descriptor() != DescTimestamp {
		return 0, fmt.Errorf("atom: not a timestamp header")
	}
	if len(atoms) < 3 {
		return 0, fmt.Errorf("%w: timestamp needs 2 atoms, %d remain",
			ErrMalformedSequence, len(atoms)-1)
	}
	return JoinTimestamp(atoms[1], atoms[2]), nil
}
