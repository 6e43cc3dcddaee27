package rcode

import (
	"errors"
	"testing"
	"time"

	"github.com/chazu/rcode/atom"
)

func TestCollectReclaimsUnreachableCycle(t *testing.T) {
	s := NewSpace()
	root := s.New(OriginLocal)
	kept := s.New(OriginLocal)
	a := s.New(OriginLocal)
	b := s.New(OriginLocal)

	root.AddReference(kept)
	a.AddReference(b)
	b.AddReference(a)

	for _, o := range []*Object{kept, a, b} {
		if err := s.Release(o); err != nil {
			t.Fatal(err)
		}
	}

	stats := s.Collect()
	if stats.Swept != 2 || stats.Live != 2 || stats.Roots != 1 {
		t.Errorf("stats = %+v, want 2 swept, 2 live, 1 root", stats)
	}
	if _, err := s.Get(a.Handle()); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("a still live: %v", err)
	}
	if _, err := s.Get(kept.Handle()); err != nil {
		t.Errorf("kept was collected: %v", err)
	}
	if err := s.Retain(b); !errors.Is(err, ErrUnknownHandle) {
		t.Errorf("Retain collected object: %v", err)
	}
}

func TestCollectFollowsReferences(t *testing.T) {
	s := NewSpace()
	o := s.New(OriginLocal)
	ref := s.New(OriginLocal)
	o.AddReference(ref)
	o.AppendCode(atom.RPointer(0))

	// Rooted through o: survives.
	s.Release(ref)
	s.Collect()
	if got, _ := o.TraceString(); got != "--------\n0\trptr: 0 -> 0\nOID: 0\n" {
		t.Errorf("trace = %q", got)
	}

	o.ClearReferences()
	s.Collect()
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if !s.IsRoot(o) || s.IsRoot(ref) {
		t.Error("root bookkeeping")
	}
}

func TestCollectorLifecycle(t *testing.T) {
	s := NewSpace()
	s.Release(s.New(OriginLocal))

	c := NewCollector(s, 5*time.Millisecond)
	if c.Interval() != 5*time.Millisecond || !c.IsEnabled() {
		t.Fatalf("collector config: %v %v", c.Interval(), c.IsEnabled())
	}
	if c.LastStats() != nil {
		t.Error("LastStats before any sweep")
	}

	c.Start()
	c.Start()
	deadline := time.Now().Add(2 * time.Second)
	for c.SweepCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Stop()
	c.Stop()

	if c.SweepCount() == 0 {
		t.Fatal("collector never swept")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after sweeps", s.Len())
	}
	if c.LastStats() == nil {
		t.Error("LastStats nil after sweep")
	}
}

func TestCollectorSweepNow(t *testing.T) {
	s := NewSpace()
	s.New(OriginLocal)
	c := NewCollector(s, 0)
	if c.Interval() != DefaultCollectInterval {
		t.Errorf("Interval = %v", c.Interval())
	}
	c.SetEnabled(false)
	stats := c.SweepNow()
	if stats.Live != 1 || c.SweepCount() != 1 {
		t.Errorf("SweepNow: %+v, count %d", stats, c.SweepCount())
	}
}
