// Package atom implements the 32-bit cell encoding used for all program and
// object storage.
//
// An Atom is either a float (bit 31 clear) or a tagged value whose top byte
// is a Descriptor. Structural headers (objects, markers, sets, programs,
// strings, timestamps) announce how many atoms follow as their members, so
// a code array is a flat sequence whose nesting is discovered while reading
// it.
//
// Multi-atom payloads:
//
//	string:    header(blocks, chars) block0 block1 ...   (4 bytes per block, little-endian)
//	timestamp: header high32 low32                         (microseconds since epoch)
//
// Trace renders atoms as text. It is stateful: a TraceContext threads the
// pending member, string and timestamp counters from one atom to the next.
package atom
