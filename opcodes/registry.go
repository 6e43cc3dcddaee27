// Package opcodes holds the write-once table of opcode display names used
// when tracing code.
package opcodes

import (
	"errors"
	"sync/atomic"

	"github.com/tliron/commonlog"
)

// Unknown is the name rendered for opcodes missing from the table.
const Unknown = "unknown"

// ErrAlreadySet is returned by Set once a table has been published.
var ErrAlreadySet = errors.New("opcodes: names already set")

var log = commonlog.GetLogger("rcode.opcodes")

type table struct {
	names  map[uint16]string
	byName map[string]uint16
}

// Registry maps opcodes to names. It is published once and read-only
// afterwards; reads are safe from any goroutine.
type Registry struct {
	t atomic.Pointer[table]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set copies names into the registry. Only the first call succeeds; later
// calls return ErrAlreadySet and leave the published table untouched.
func (r *Registry) Set(names map[uint16]string) error {
	t := &table{
		names:  make(map[uint16]string, len(names)),
		byName: make(map[string]uint16, len(names)),
	}
	for op, name := range names {
		t.names[op] = name
		if prev, ok := t.byName[name]; !ok || op < prev {
			t.byName[name] = op
		}
	}

	if !r.t.CompareAndSwap(nil, t) {
		log.Warningf("rejected second opcode table (%d names)", len(names))
		return ErrAlreadySet
	}
	log.Debugf("published %d opcode names", len(names))
	return nil
}

// IsSet reports whether a table has been published.
func (r *Registry) IsSet() bool {
	return r.t.Load() != nil
}

// Len returns the number of published names.
func (r *Registry) Len() int {
	t := r.t.Load()
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Name returns the name of opcode, or Unknown.
func (r *Registry) Name(opcode uint16) string {
	t := r.t.Load()
	if t == nil {
		return Unknown
	}
	if name, ok := t.names[opcode]; ok {
		return name
	}
	return Unknown
}

// Lookup returns the opcode registered under name. When several opcodes
// share a name the lowest wins.
func (r *Registry) Lookup(name string) (uint16, bool) {
	t := r.t.Load()
	if t == nil {
		return 0, false
	}
	op, ok := t.byName[name]
	return op, ok
}

// Default is the process-wide registry, filled by the loader at startup.
var Default = NewRegistry()

// SetOpcodeNames publishes names into Default.
func SetOpcodeNames(names map[uint16]string) error {
	return Default.Set(names)
}

// OpcodeName looks up opcode in Default.
func OpcodeName(opcode uint16) string {
	return Default.Name(opcode)
}
