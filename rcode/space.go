package rcode

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/rcode/atom"
	"github.com/chazu/rcode/opcodes"
)

var (
	// ErrOutOfRange is returned for code or reference indices at or beyond
	// the array length.
	ErrOutOfRange = errors.New("rcode: index out of range")

	// ErrUnknownHandle is returned for handles that were never issued or
	// whose object has been collected.
	ErrUnknownHandle = errors.New("rcode: unknown handle")

	// ErrForeignObject is returned when referencing an object that lives in
	// another space.
	ErrForeignObject = errors.New("rcode: object belongs to another space")
)

// firstDetailOID keeps detail OIDs visibly apart from small OIDs.
const firstDetailOID = 11

// Handle addresses an object within its space. The zero Handle is never
// issued.
type Handle uint32

// Origin says where an object's code came from.
type Origin uint8

const (
	OriginLocal Origin = iota // built in this process
	OriginImage               // materialized from an image
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginImage:
		return "image"
	}
	return fmt.Sprintf("origin(%d)", uint8(o))
}

// Space is an arena of code objects. Objects reference each other by
// handle, so reference cycles are fine; unreachable objects are reclaimed
// by Collect.
//
// Objects are roots when created. Release drops the root so the object
// lives only as long as something reachable refers to it.
type Space struct {
	mu      sync.RWMutex
	objects map[Handle]*Object
	roots   map[Handle]struct{}
	next    Handle

	detailOIDs    bool
	lastDetailOID atomic.Uint64

	names atom.Namer
	log   commonlog.Logger
}

// Option configures a Space.
type Option func(*Space)

// WithDetailOIDs turns on diagnostic detail OIDs. They are assigned from a
// per-space counter and printed by traces.
func WithDetailOIDs(on bool) Option {
	return func(s *Space) { s.detailOIDs = on }
}

// WithOpcodeNames sets the names used by traces. The default is
// opcodes.Default.
func WithOpcodeNames(names atom.Namer) Option {
	return func(s *Space) { s.names = names }
}

// WithLogger overrides the space's logger.
func WithLogger(l commonlog.Logger) Option {
	return func(s *Space) { s.log = l }
}

// NewSpace creates an empty space.
func NewSpace(opts ...Option) *Space {
	s := &Space{
		objects: make(map[Handle]*Object),
		roots:   make(map[Handle]struct{}),
		names:   opcodes.Default,
		log:     commonlog.GetLogger("rcode.space"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastDetailOID.Store(firstDetailOID)
	return s
}

// DetailOIDs reports whether detail OIDs are enabled.
func (s *Space) DetailOIDs() bool { return s.detailOIDs }

// Names returns the opcode names used by traces.
func (s *Space) Names() atom.Namer { return s.names }

// New creates a rooted object with an empty code array.
func (s *Space) New(origin Origin) *Object {
	o := &Object{space: s, origin: origin}
	if s.detailOIDs {
		o.detailOID.Store(s.nextDetailOID())
	}

	s.mu.Lock()
	s.next++
	o.handle = s.next
	s.objects[o.handle] = o
	s.roots[o.handle] = struct{}{}
	s.mu.Unlock()

	return o
}

// Get returns the live object for h.
func (s *Space) Get(h Handle) (*Object, error) {
	s.mu.RLock()
	o, ok := s.objects[h]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return o, nil
}

// Len returns the number of live objects.
func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Handles returns the handles of all live objects in creation order.
func (s *Space) Handles() []Handle {
	s.mu.RLock()
	hs := make([]Handle, 0, len(s.objects))
	for h := range s.objects {
		hs = append(hs, h)
	}
	s.mu.RUnlock()

	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Release drops o's root. It stays alive while reachable from a root.
func (s *Space) Release(o *Object) error {
	if o.space != s {
		return ErrForeignObject
	}
	s.mu.Lock()
	delete(s.roots, o.handle)
	s.mu.Unlock()
	return nil
}

// Retain makes o a root again.
func (s *Space) Retain(o *Object) error {
	if o.space != s {
		return ErrForeignObject
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[o.handle]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, o.handle)
	}
	s.roots[o.handle] = struct{}{}
	return nil
}

// IsRoot reports whether o is a root.
func (s *Space) IsRoot(o *Object) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roots[o.handle]
	return ok
}

// nextDetailOID hands out the next detail OID. Once the counter reaches
// math.MaxUint64 it is exhausted and objects get 0 (no detail OID).
func (s *Space) nextDetailOID() uint64 {
	for {
		cur := s.lastDetailOID.Load()
		if cur == math.MaxUint64 {
			s.log.Warningf("detail OIDs exhausted")
			return 0
		}
		if s.lastDetailOID.CompareAndSwap(cur, cur+1) {
			return cur
		}
	}
}

// advanceDetailOID makes sure the next assigned detail OID is above d.
func (s *Space) advanceDetailOID(d uint64) {
	next := uint64(math.MaxUint64)
	if d < math.MaxUint64 {
		next = d + 1
	}
	for {
		cur := s.lastDetailOID.Load()
		if cur >= next || s.lastDetailOID.CompareAndSwap(cur, next) {
			return
		}
	}
}
