package pipeline

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	applied []int
	runs    int
}

func (r *recorder) work(v int) Work {
	return func(ctx context.Context, gen uint64) (func(), error) {
		r.mu.Lock()
		r.runs++
		r.mu.Unlock()
		return func() {
			r.mu.Lock()
			r.applied = append(r.applied, v)
			r.mu.Unlock()
		}, nil
	}
}

func (r *recorder) snapshot() ([]int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.applied...), r.runs
}

func TestDebounceCoalescesBurst(t *testing.T) {
	sched := newFakeScheduler()
	c := NewDebounceCoordinator(DebounceConfig{Name: "test", Scheduler: sched})
	rec := &recorder{}

	for i := 1; i <= 5; i++ {
		c.Schedule(rec.work(i))
	}
	sched.Advance(0)
	c.Wait()

	applied, runs := rec.snapshot()
	if runs != 1 || !reflect.DeepEqual(applied, []int{5}) {
		t.Fatalf("runs=%d applied=%v, want one run applying 5", runs, applied)
	}
	if c.Generation() != 5 {
		t.Fatalf("generation=%d, want 5", c.Generation())
	}
}

func TestDebounceQuietPeriodRestarts(t *testing.T) {
	sched := newFakeScheduler()
	c := NewDebounceCoordinator(DebounceConfig{Name: "test", Scheduler: sched, Quiet: 50 * time.Millisecond})
	rec := &recorder{}

	c.Schedule(rec.work(1))
	sched.Advance(30 * time.Millisecond)
	c.Schedule(rec.work(2))
	sched.Advance(30 * time.Millisecond)
	if _, runs := rec.snapshot(); runs != 0 {
		t.Fatalf("work ran before the quiet period elapsed")
	}
	sched.Advance(20 * time.Millisecond)
	c.Wait()

	applied, runs := rec.snapshot()
	if runs != 1 || !reflect.DeepEqual(applied, []int{2}) {
		t.Fatalf("runs=%d applied=%v", runs, applied)
	}
}

func TestDebounceDiscardsSupersededInFlight(t *testing.T) {
	sched := newFakeScheduler()
	c := NewDebounceCoordinator(DebounceConfig{Name: "test", Scheduler: sched})
	rec := &recorder{}

	started := make(chan struct{})
	release := make(chan struct{})
	var cancelled bool
	c.Schedule(func(ctx context.Context, gen uint64) (func(), error) {
		close(started)
		<-release
		cancelled = ctx.Err() != nil
		return func() { t.Errorf("superseded result applied") }, nil
	})
	sched.Advance(0)
	<-started

	c.Schedule(rec.work(2))
	sched.Advance(0)
	if _, runs := rec.snapshot(); runs != 0 {
		t.Fatalf("second work started while the first was in flight")
	}
	close(release)
	c.Wait()

	applied, _ := rec.snapshot()
	if !reflect.DeepEqual(applied, []int{2}) {
		t.Fatalf("applied=%v, want [2]", applied)
	}
	if !cancelled {
		t.Fatalf("in-flight context was not cancelled")
	}
}

func TestDebounceErrorSink(t *testing.T) {
	sched := newFakeScheduler()
	boom := errors.New("boom")
	var (
		mu   sync.Mutex
		errs []error
	)
	c := NewDebounceCoordinator(DebounceConfig{
		Name:      "test",
		Scheduler: sched,
		OnError: func(gen uint64, err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	})

	c.Schedule(func(context.Context, uint64) (func(), error) { return nil, boom })
	sched.Advance(0)
	c.Wait()
	c.Schedule(func(context.Context, uint64) (func(), error) { return nil, ErrCancelled })
	sched.Advance(0)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Fatalf("errs=%v, want only boom", errs)
	}
}

func TestDebounceClose(t *testing.T) {
	sched := newFakeScheduler()
	c := NewDebounceCoordinator(DebounceConfig{Name: "test", Scheduler: sched})
	rec := &recorder{}

	c.Schedule(rec.work(1))
	c.Close()
	sched.Advance(time.Second)
	c.Wait()
	c.Schedule(rec.work(2))
	sched.Advance(time.Second)

	if _, runs := rec.snapshot(); runs != 0 {
		t.Fatalf("closed coordinator ran %d works", runs)
	}
}

func TestDebounceSupersededAtSettleIsDiscarded(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"result", nil},
		{"error", errors.New("boom")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched := newFakeScheduler()
			errs := 0
			c := NewDebounceCoordinator(DebounceConfig{
				Name:      "test",
				Scheduler: sched,
				OnError:   func(uint64, error) { errs++ },
			})
			rec := &recorder{}

			// the newer request lands after the query returned but before it settles
			scheduled := make(chan struct{})
			c.Schedule(func(ctx context.Context, gen uint64) (func(), error) {
				c.Schedule(rec.work(2))
				close(scheduled)
				return func() { t.Errorf("superseded result applied") }, tc.err
			})
			sched.Advance(0)
			<-scheduled
			sched.Advance(0)
			c.Wait()

			applied, _ := rec.snapshot()
			if !reflect.DeepEqual(applied, []int{2}) {
				t.Fatalf("applied=%v, want [2]", applied)
			}
			if errs != 0 {
				t.Fatalf("superseded error reached the sink %d times", errs)
			}
		})
	}
}
