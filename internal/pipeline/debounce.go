package pipeline

import (
	"context"
	"sync"
	"time"

	"street_trees/internal/logger"
	"street_trees/internal/metrics"
)

// Work computes a recompute for generation gen. The returned apply publishes
// the result; the coordinator calls it only if gen is still the latest
// generation when work settles.
type Work func(ctx context.Context, gen uint64) (apply func(), err error)

// DebounceCoordinator turns bursts of schedule calls into one trailing run.
// At most one Work is in flight. Scheduling while a run is in flight bumps
// the generation and cancels the run's context; its result is dropped.
type DebounceCoordinator struct {
	name    string
	sched   Scheduler
	quiet   time.Duration
	onError func(gen uint64, err error)
	log     *logger.Logger

	mu         sync.Mutex
	idle       *sync.Cond
	gen        uint64
	pending    Work
	pendingGen uint64
	timerSeq   uint64
	timerStop  CancelFunc
	running    bool
	runCancel  context.CancelFunc
	closed     bool
}

// DebounceConfig configures a coordinator.
type DebounceConfig struct {
	Name      string
	Scheduler Scheduler
	Quiet     time.Duration
	OnError   func(gen uint64, err error)
	Log       *logger.Logger
}

func NewDebounceCoordinator(cfg DebounceConfig) *DebounceCoordinator {
	sched := cfg.Scheduler
	if sched == nil {
		sched = NewTimerScheduler()
	}
	c := &DebounceCoordinator{
		name:    cfg.Name,
		sched:   sched,
		quiet:   cfg.Quiet,
		onError: cfg.OnError,
		log:     cfg.Log,
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Schedule queues work after the default quiet period and returns its generation.
func (c *DebounceCoordinator) Schedule(work Work) uint64 {
	return c.ScheduleAfter(c.quiet, work)
}

// ScheduleAfter queues work after delay, replacing any work not yet started.
func (c *DebounceCoordinator) ScheduleAfter(delay time.Duration, work Work) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.gen
	}

	c.gen++
	c.pending = work
	c.pendingGen = c.gen
	if c.runCancel != nil {
		c.runCancel()
	}
	if c.timerStop != nil {
		c.timerStop()
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timerStop = c.sched.AfterFunc(delay, func() { c.fire(seq) })
	return c.gen
}

// Generation returns the latest scheduled generation.
func (c *DebounceCoordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Wait blocks until nothing is pending or running.
func (c *DebounceCoordinator) Wait() {
	c.mu.Lock()
	for c.running || c.pending != nil {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

// Close drops pending work and cancels the in-flight run.
func (c *DebounceCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.gen++
	c.pending = nil
	if c.timerStop != nil {
		c.timerStop()
		c.timerStop = nil
	}
	if c.runCancel != nil {
		c.runCancel()
	}
	c.idle.Broadcast()
}

func (c *DebounceCoordinator) fire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.timerSeq || c.closed {
		return
	}
	c.timerStop = nil
	if c.running {
		// picked up when the in-flight run settles
		return
	}
	c.startLocked()
}

func (c *DebounceCoordinator) startLocked() {
	work, gen := c.pending, c.pendingGen
	if work == nil {
		return
	}
	c.pending = nil
	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.runCancel = cancel
	go c.run(ctx, cancel, gen, work)
}

func (c *DebounceCoordinator) run(ctx context.Context, cancel context.CancelFunc, gen uint64, work Work) {
	apply, err := work(ctx, gen)
	cancel()

	// The generation is checked last, right before apply. A Schedule landing
	// after the check lets this result publish once; runs are serialized, so
	// the newer generation still publishes after it.
	switch {
	case IsCancelled(err):
		c.discard(gen)
	case err != nil && c.superseded(gen):
		c.discard(gen)
	case err != nil:
		metrics.RecomputesTotal.WithLabelValues(c.name, "error").Inc()
		if c.onError != nil {
			c.onError(gen, err)
		}
	case c.superseded(gen):
		c.discard(gen)
	default:
		metrics.RecomputesTotal.WithLabelValues(c.name, "applied").Inc()
		if apply != nil {
			apply()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.runCancel = nil
	if c.pending != nil && c.timerStop == nil && !c.closed {
		c.startLocked()
	}
	if !c.running && c.pending == nil {
		c.idle.Broadcast()
	}
}

// superseded reports whether a newer generation was scheduled after gen.
func (c *DebounceCoordinator) superseded(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

func (c *DebounceCoordinator) discard(gen uint64) {
	metrics.RecomputesTotal.WithLabelValues(c.name, "stale").Inc()
	if c.log != nil {
		c.log.Debugw("recompute_discarded", "component", c.name, "generation", gen)
	}
}
