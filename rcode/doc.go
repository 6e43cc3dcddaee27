// Package rcode implements code objects: arrays of atoms with references to
// other code objects, kept in a Space.
//
// A reference pointer atom (atom.RPointer) in an object's code holds an
// index into that object's reference array. Traces resolve such atoms to
// the OID of the referenced object:
//
//	--------
//	0	obj: 7 (add) 2
//	1	   rptr: 0 -> 42
//	2	   bl: true
//	OID: 5
//
// Objects may reference each other cyclically. The space owns every object;
// Collect reclaims objects that are no longer reachable from a root.
package rcode
