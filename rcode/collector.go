package rcode

import (
	"sync"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Collection: reclaim objects unreachable from the roots
// ---------------------------------------------------------------------------

// CollectStats holds statistics from a single collection.
type CollectStats struct {
	Roots         int
	Live          int
	Swept         int
	SweepDuration time.Duration
	Timestamp     time.Time
}

// Collect marks every object reachable from a root through references and
// drops the rest from the space. Cycles without a path from a root are
// reclaimed.
//
// Mutators that move references between objects while a collection runs
// must keep the moved object rooted (Retain) until the move is done.
func (s *Space) Collect() *CollectStats {
	start := time.Now()
	stats := &CollectStats{Timestamp: start}

	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[Handle]struct{}, len(s.objects))
	stack := make([]Handle, 0, len(s.roots))
	for h := range s.roots {
		stack = append(stack, h)
	}
	stats.Roots = len(stack)

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := marked[h]; ok {
			continue
		}
		o, ok := s.objects[h]
		if !ok {
			continue
		}
		marked[h] = struct{}{}
		for _, ref := range o.referenceHandles() {
			if _, ok := marked[ref]; !ok {
				stack = append(stack, ref)
			}
		}
	}

	for h := range s.objects {
		if _, ok := marked[h]; !ok {
			delete(s.objects, h)
			stats.Swept++
		}
	}
	stats.Live = len(s.objects)
	stats.SweepDuration = time.Since(start)

	if stats.Swept > 0 {
		s.log.Debugf("collected %d objects, %d live, %d roots", stats.Swept, stats.Live, stats.Roots)
	}
	return stats
}

// Collector periodically runs Collect on a space. This keeps long-running
// hosts (servers, REPLs) from accumulating released objects.
type Collector struct {
	space    *Space
	interval time.Duration
	enabled  atomic.Bool
	stop     chan struct{}
	stopped  chan struct{}
	mu       sync.Mutex // protects start/stop lifecycle

	sweepCount atomic.Uint64
	lastStats  atomic.Value // *CollectStats
}

// DefaultCollectInterval is the default interval between collections.
const DefaultCollectInterval = 30 * time.Second

// NewCollector creates a collector for space. A non-positive interval
// selects DefaultCollectInterval.
func NewCollector(space *Space, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	c := &Collector{
		space:    space,
		interval: interval,
	}
	c.enabled.Store(true)
	return c
}

// Start begins the periodic collection goroutine. Calling Start on a
// running collector does nothing.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}

	c.stop = make(chan struct{})
	c.stopped = make(chan struct{})

	stopCh := c.stop
	stoppedCh := c.stopped
	go c.loop(stopCh, stoppedCh)
}

// Stop halts the collection goroutine and waits for it to finish. It is
// safe to call on a collector that was never started.
func (c *Collector) Stop() {
	c.mu.Lock()
	stopCh := c.stop
	stoppedCh := c.stopped
	c.stop = nil
	c.stopped = nil
	c.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-stoppedCh
	}
}

// SetEnabled pauses or resumes collection without stopping the goroutine.
func (c *Collector) SetEnabled(enabled bool) { c.enabled.Store(enabled) }

func (c *Collector) IsEnabled() bool         { return c.enabled.Load() }
func (c *Collector) Interval() time.Duration { return c.interval }
func (c *Collector) SweepCount() uint64      { return c.sweepCount.Load() }

// LastStats returns the statistics of the latest collection, or nil.
func (c *Collector) LastStats() *CollectStats {
	v := c.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*CollectStats)
}

// SweepNow collects immediately.
func (c *Collector) SweepNow() *CollectStats {
	return c.sweep()
}

func (c *Collector) loop(stopCh <-chan struct{}, stoppedCh chan struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if c.enabled.Load() {
				c.sweep()
			}
		}
	}
}

func (c *Collector) sweep() *CollectStats {
	stats := c.space.Collect()
	c.sweepCount.Add(1)
	c.lastStats.Store(stats)
	return stats
}
