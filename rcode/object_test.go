package rcode

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/chazu/rcode/atom"
)

func TestObjectIdentity(t *testing.T) {
	s := NewSpace()
	o := s.New(OriginLocal)
	if o.Handle() == 0 {
		t.Error("zero handle issued")
	}
	if o.Origin() != OriginLocal || o.Origin().String() != "local" {
		t.Errorf("Origin = %v", o.Origin())
	}
	o.SetOID(42)
	if o.OID() != 42 {
		t.Errorf("OID = %d, want 42", o.OID())
	}
	if o.DetailOID() != 0 {
		t.Errorf("DetailOID without detail OIDs = %d, want 0", o.DetailOID())
	}
}

func TestCodeAccess(t *testing.T) {
	o := NewSpace().New(OriginLocal)

	if _, err := o.Code(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Code(0) on empty object: err = %v, want ErrOutOfRange", err)
	}

	if err := o.SetCode(3, atom.Nil()); err != nil {
		t.Fatalf("SetCode: %v", err)
	}
	if o.CodeSize() != 4 {
		t.Fatalf("CodeSize after SetCode(3) = %d, want 4", o.CodeSize())
	}
	for i := 0; i < 3; i++ {
		a, err := o.Code(i)
		if err != nil || !a.IsUndefined() {
			t.Errorf("Code(%d) = %#08x, %v, want undefined", i, uint32(a), err)
		}
	}
	if a, _ := o.Code(3); a != atom.Nil() {
		t.Errorf("Code(3) = %#08x, want nil", uint32(a))
	}
	if _, err := o.Code(4); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Code(4): err = %v", err)
	}
	if _, err := o.Code(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Code(-1): err = %v", err)
	}
	if err := o.SetCode(-1, atom.Nil()); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetCode(-1): err = %v", err)
	}
}

func TestResizeCode(t *testing.T) {
	o := NewSpace().New(OriginLocal)
	o.AppendCode(atom.Nil(), atom.Boolean(true), atom.This())

	o.ResizeCode(1)
	if o.CodeSize() != 1 {
		t.Fatalf("CodeSize = %d, want 1", o.CodeSize())
	}
	o.ResizeCode(3)
	atoms := o.Atoms()
	if len(atoms) != 3 || atoms[0] != atom.Nil() || !atoms[1].IsUndefined() || !atoms[2].IsUndefined() {
		t.Errorf("after grow: %v", atoms)
	}
	o.ResizeCode(-5)
	if o.CodeSize() != 0 {
		t.Errorf("negative resize: CodeSize = %d", o.CodeSize())
	}
}

func TestAtomsIsACopy(t *testing.T) {
	o := NewSpace().New(OriginLocal)
	src := []atom.Atom{atom.Nil()}
	o.LoadCode(src)
	src[0] = atom.This()
	got := o.Atoms()
	got[0] = atom.View()
	if a, _ := o.Code(0); a != atom.Nil() {
		t.Errorf("code aliased caller slice: %v", a)
	}
}

func TestReferences(t *testing.T) {
	s := NewSpace()
	o := s.New(OriginLocal)
	a := s.New(OriginLocal)
	b := s.New(OriginLocal)

	if _, err := o.Reference(0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Reference(0) on empty: err = %v", err)
	}
	if err := o.SetReference(0, a); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetReference(0) on empty: err = %v", err)
	}

	if i, err := o.AddReference(a); err != nil || i != 0 {
		t.Fatalf("AddReference = %d, %v", i, err)
	}
	if i, _ := o.AddReference(a); i != 1 {
		t.Fatalf("second AddReference = %d", i)
	}
	if err := o.SetReference(1, b); err != nil {
		t.Fatalf("SetReference: %v", err)
	}
	if o.ReferencesSize() != 2 {
		t.Errorf("ReferencesSize = %d", o.ReferencesSize())
	}
	if got, _ := o.Reference(1); got != b {
		t.Errorf("Reference(1) = %v, want b", got)
	}

	o.ClearReferences()
	if o.ReferencesSize() != 0 {
		t.Errorf("ReferencesSize after clear = %d", o.ReferencesSize())
	}

	if err := o.SetReferences([]*Object{b, a, b}); err != nil {
		t.Fatal(err)
	}
	if got, _ := o.Reference(2); got != b {
		t.Error("SetReferences order")
	}
}

func TestForeignReferences(t *testing.T) {
	s1, s2 := NewSpace(), NewSpace()
	o := s1.New(OriginLocal)
	foreign := s2.New(OriginLocal)

	if _, err := o.AddReference(foreign); !errors.Is(err, ErrForeignObject) {
		t.Errorf("AddReference foreign: %v", err)
	}
	if _, err := o.AddReference(nil); !errors.Is(err, ErrForeignObject) {
		t.Errorf("AddReference nil: %v", err)
	}
	if err := o.SetReferences([]*Object{foreign}); !errors.Is(err, ErrForeignObject) {
		t.Errorf("SetReferences foreign: %v", err)
	}
	if err := s1.Release(foreign); !errors.Is(err, ErrForeignObject) {
		t.Errorf("Release foreign: %v", err)
	}
}

func TestReferenceToCollectedObject(t *testing.T) {
	s := NewSpace()
	o := s.New(OriginLocal)
	dead := s.New(OriginLocal)
	dead.SetOID(2)
	if err := s.Release(dead); err != nil {
		t.Fatal(err)
	}
	s.Collect()

	if _, err := o.AddReference(dead); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("AddReference collected: err = %v, want ErrUnknownHandle", err)
	}
	if err := o.SetReferences([]*Object{dead}); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("SetReferences collected: err = %v, want ErrUnknownHandle", err)
	}
	live := s.New(OriginLocal)
	o.AddReference(live)
	if err := o.SetReference(0, dead); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("SetReference collected: err = %v, want ErrUnknownHandle", err)
	}

	// Every index below ReferencesSize still resolves.
	if o.ReferencesSize() != 1 {
		t.Fatalf("ReferencesSize = %d, want 1", o.ReferencesSize())
	}
	if got, err := o.Reference(0); err != nil || got != live {
		t.Errorf("Reference(0) = %v, %v", got, err)
	}
}

func TestSelfAndCyclicReferences(t *testing.T) {
	s := NewSpace()
	a := s.New(OriginLocal)
	b := s.New(OriginLocal)
	a.AddReference(a)
	a.AddReference(b)
	b.AddReference(a)

	if got, _ := a.Reference(0); got != a {
		t.Error("self reference")
	}
	if got, _ := b.Reference(0); got != a {
		t.Error("cycle back to a")
	}
}

// ---------------------------------------------------------------------------
// Detail OIDs
// ---------------------------------------------------------------------------

func TestDetailOIDsAssigned(t *testing.T) {
	s := NewSpace(WithDetailOIDs(true))
	a := s.New(OriginLocal)
	b := s.New(OriginLocal)
	if a.DetailOID() != firstDetailOID {
		t.Errorf("first detail OID = %d, want %d", a.DetailOID(), firstDetailOID)
	}
	if b.DetailOID() != a.DetailOID()+1 {
		t.Errorf("second detail OID = %d", b.DetailOID())
	}
}

func TestSetDetailOIDRatchets(t *testing.T) {
	s := NewSpace(WithDetailOIDs(true))
	a := s.New(OriginLocal)
	a.SetDetailOID(1000)
	if got := s.New(OriginLocal).DetailOID(); got != 1001 {
		t.Errorf("after SetDetailOID(1000): next = %d, want 1001", got)
	}

	// Setting a lower value never moves the counter back.
	a.SetDetailOID(5)
	if a.DetailOID() != 5 {
		t.Errorf("DetailOID = %d, want 5", a.DetailOID())
	}
	if got := s.New(OriginLocal).DetailOID(); got != 1002 {
		t.Errorf("after SetDetailOID(5): next = %d, want 1002", got)
	}
}

func TestDetailOIDsSaturate(t *testing.T) {
	tests := []struct {
		name string
		set  uint64
		want []uint64
	}{
		{"at max", math.MaxUint64, []uint64{0, 0}},
		{"one below max", math.MaxUint64 - 1, []uint64{0, 0}},
		{"two below max", math.MaxUint64 - 2, []uint64{math.MaxUint64 - 1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSpace(WithDetailOIDs(true))
			a := s.New(OriginLocal)
			a.SetDetailOID(tt.set)
			for i, want := range tt.want {
				if got := s.New(OriginLocal).DetailOID(); got != want {
					t.Errorf("object %d: detail OID = %d, want %d", i, got, want)
				}
			}
			// A lower explicit value must not reopen the exhausted counter.
			a.SetDetailOID(100)
			if got := s.New(OriginLocal).DetailOID(); got != 0 {
				t.Errorf("after lowering: detail OID = %d, want 0", got)
			}
		})
	}
}

func TestDetailOIDsUniqueUnderConcurrency(t *testing.T) {
	s := NewSpace(WithDetailOIDs(true))
	const workers, perWorker = 8, 200

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				d := s.New(OriginLocal).DetailOID()
				mu.Lock()
				if seen[d] {
					t.Errorf("duplicate detail OID %d", d)
				}
				seen[d] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("got %d distinct detail OIDs, want %d", len(seen), workers*perWorker)
	}
	if s.Len() != workers*perWorker {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestSpaceHandles(t *testing.T) {
	s := NewSpace()
	var want []Handle
	for i := 0; i < 5; i++ {
		want = append(want, s.New(OriginImage).Handle())
	}
	got := s.Handles()
	if len(got) != len(want) {
		t.Fatalf("Handles = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Handles[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if _, err := s.Get(9999); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Get unknown: %v", err)
	}
}
