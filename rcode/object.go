package rcode

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chazu/rcode/atom"
)

// Object is a code object: an array of atoms plus an array of references
// to other objects in the same space. Reference pointer atoms in the code
// index into the reference array.
//
// Code and references are guarded by a per-object lock; identity fields
// are atomic.
type Object struct {
	space  *Space
	handle Handle
	origin Origin

	oid       atomic.Uint32
	detailOID atomic.Uint64

	mu   sync.RWMutex
	code []atom.Atom
	refs []Handle
}

// Handle returns o's handle in its space.
func (o *Object) Handle() Handle { return o.handle }

// Space returns the space that owns o.
func (o *Object) Space() *Space { return o.space }

// Origin reports whether o was built locally or loaded from an image.
func (o *Object) Origin() Origin { return o.origin }

func (o *Object) OID() uint32       { return o.oid.Load() }
func (o *Object) SetOID(oid uint32) { o.oid.Store(oid) }

// DetailOID returns the diagnostic detail OID, or 0 when the space does not
// assign them.
func (o *Object) DetailOID() uint64 { return o.detailOID.Load() }

// SetDetailOID sets o's detail OID and advances the space's counter so
// that objects created later get a higher one.
func (o *Object) SetDetailOID(d uint64) {
	o.detailOID.Store(d)
	o.space.advanceDetailOID(d)
}

// ---------------------------------------------------------------------------
// Code
// ---------------------------------------------------------------------------

// Code returns the atom at index i.
func (o *Object) Code(i int) (atom.Atom, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if i < 0 || i >= len(o.code) {
		return atom.Undefined(), fmt.Errorf("%w: code %d of %d", ErrOutOfRange, i, len(o.code))
	}
	return o.code[i], nil
}

// SetCode stores a at index i, growing the code array with undefined atoms
// when i is past the end.
func (o *Object) SetCode(i int, a atom.Atom) error {
	if i < 0 {
		return fmt.Errorf("%w: code %d", ErrOutOfRange, i)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if i >= len(o.code) {
		o.resizeLocked(i + 1)
	}
	o.code[i] = a
	return nil
}

// AppendCode adds atoms at the end of the code array and returns the index
// of the first one.
func (o *Object) AppendCode(atoms ...atom.Atom) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	start := len(o.code)
	o.code = append(o.code, atoms...)
	return start
}

// CodeSize returns the length of the code array.
func (o *Object) CodeSize() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.code)
}

// ResizeCode truncates the code array or pads it with undefined atoms.
func (o *Object) ResizeCode(n int) {
	if n < 0 {
		n = 0
	}
	o.mu.Lock()
	o.resizeLocked(n)
	o.mu.Unlock()
}

func (o *Object) resizeLocked(n int) {
	if n <= len(o.code) {
		o.code = o.code[:n]
		return
	}
	for len(o.code) < n {
		o.code = append(o.code, atom.Undefined())
	}
}

// Atoms returns a copy of the code array.
func (o *Object) Atoms() []atom.Atom {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]atom.Atom, len(o.code))
	copy(out, o.code)
	return out
}

// LoadCode replaces the code array with a copy of atoms.
func (o *Object) LoadCode(atoms []atom.Atom) {
	code := make([]atom.Atom, len(atoms))
	copy(code, atoms)
	o.mu.Lock()
	o.code = code
	o.mu.Unlock()
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

// checkOwned rejects references to objects of another space and to objects
// the space has already collected.
func (o *Object) checkOwned(ref *Object) error {
	if ref == nil || ref.space != o.space {
		return ErrForeignObject
	}
	s := o.space
	s.mu.RLock()
	live := s.objects[ref.handle] == ref
	s.mu.RUnlock()
	if !live {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, ref.handle)
	}
	return nil
}

// SetReference replaces the reference at index i.
func (o *Object) SetReference(i int, ref *Object) error {
	if err := o.checkOwned(ref); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if i < 0 || i >= len(o.refs) {
		return fmt.Errorf("%w: reference %d of %d", ErrOutOfRange, i, len(o.refs))
	}
	o.refs[i] = ref.handle
	return nil
}

// AddReference appends ref and returns its index.
func (o *Object) AddReference(ref *Object) (int, error) {
	if err := o.checkOwned(ref); err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refs = append(o.refs, ref.handle)
	return len(o.refs) - 1, nil
}

// SetReferences replaces the whole reference array.
func (o *Object) SetReferences(refs []*Object) error {
	hs := make([]Handle, len(refs))
	for i, r := range refs {
		if err := o.checkOwned(r); err != nil {
			return fmt.Errorf("reference %d: %w", i, err)
		}
		hs[i] = r.handle
	}
	o.mu.Lock()
	o.refs = hs
	o.mu.Unlock()
	return nil
}

// Reference returns the object at reference index i.
func (o *Object) Reference(i int) (*Object, error) {
	o.mu.RLock()
	if i < 0 || i >= len(o.refs) {
		n := len(o.refs)
		o.mu.RUnlock()
		return nil, fmt.Errorf("%w: reference %d of %d", ErrOutOfRange, i, n)
	}
	h := o.refs[i]
	o.mu.RUnlock()
	return o.space.Get(h)
}

// ReferencesSize returns the length of the reference array.
func (o *Object) ReferencesSize() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.refs)
}

// ClearReferences empties the reference array.
func (o *Object) ClearReferences() {
	o.mu.Lock()
	o.refs = nil
	o.mu.Unlock()
}

func (o *Object) referenceHandles() []Handle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Handle, len(o.refs))
	copy(out, o.refs)
	return out
}

// snapshot copies code and references for a consistent read without
// holding the lock.
func (o *Object) snapshot() ([]atom.Atom, []Handle) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	code := make([]atom.Atom, len(o.code))
	copy(code, o.code)
	refs := make([]Handle, len(o.refs))
	copy(refs, o.refs)
	return code, refs
}
