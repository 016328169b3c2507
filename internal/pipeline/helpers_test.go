package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"street_trees/internal/models"
)

// fakeScheduler is a manual clock. Callbacks run on the goroutine calling Advance.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
}

func newFakeScheduler() *fakeScheduler { return &fakeScheduler{} }

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return func() {
		s.mu.Lock()
		t.stopped = true
		s.mu.Unlock()
	}
}

// Advance moves the clock by d and runs every callback that became due,
// including ones scheduled by earlier callbacks.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		next := s.popDueLocked(target)
		if next == nil {
			break
		}
		s.now = next.at
		s.mu.Unlock()
		next.fn()
		s.mu.Lock()
	}
	s.now = target
	s.mu.Unlock()
}

func (s *fakeScheduler) popDueLocked(target time.Duration) *fakeTimer {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	s.timers = live
	sort.Slice(s.timers, func(i, j int) bool {
		if s.timers[i].at == s.timers[j].at {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].at < s.timers[j].at
	})
	if len(s.timers) == 0 || s.timers[0].at > target {
		return nil
	}
	t := s.timers[0]
	s.timers = s.timers[1:]
	return t
}

// Pending reports the number of live timers.
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// stubSource records every call and answers through the optional hooks.
type stubSource struct {
	mu         sync.Mutex
	queries    []stubQuery
	histograms []models.Predicate

	queryFn func(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error)
	histFn  func(ctx context.Context, p models.Predicate, binCount int, min, max float64) ([]models.HistogramBin, error)
}

type stubQuery struct {
	Predicate models.Predicate
	Spec      models.AggregationSpec
}

func (s *stubSource) Query(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, stubQuery{Predicate: p, Spec: spec})
	fn := s.queryFn
	s.mu.Unlock()
	if fn == nil {
		return models.QueryResult{}, nil
	}
	return fn(ctx, p, spec)
}

func (s *stubSource) QueryHistogram(ctx context.Context, p models.Predicate, field string, binCount int, min, max float64) ([]models.HistogramBin, error) {
	s.mu.Lock()
	s.histograms = append(s.histograms, p)
	fn := s.histFn
	s.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, p, binCount, min, max)
}

func (s *stubSource) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func (s *stubSource) histogramCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histograms)
}

func (s *stubSource) queriesByStatistic(st models.Statistic) []stubQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []stubQuery
	for _, q := range s.queries {
		if q.Spec.Statistic == st {
			out = append(out, q)
		}
	}
	return out
}

type stubControls struct {
	mu              sync.Mutex
	categoryEnabled bool
	resetEnabled    bool
	focus           int
}

func newStubControls() *stubControls {
	return &stubControls{categoryEnabled: true, resetEnabled: true}
}

func (c *stubControls) SetCategoryListEnabled(enabled bool) {
	c.mu.Lock()
	c.categoryEnabled = enabled
	c.mu.Unlock()
}

func (c *stubControls) SetResetEnabled(enabled bool) {
	c.mu.Lock()
	c.resetEnabled = enabled
	c.mu.Unlock()
}

func (c *stubControls) FocusMap() {
	c.mu.Lock()
	c.focus++
	c.mu.Unlock()
}

type stubSurface struct {
	mu        sync.Mutex
	dim       []models.Predicate
	highlight []*models.Polygon
}

func (s *stubSurface) SetDimEffect(p models.Predicate) {
	s.mu.Lock()
	s.dim = append(s.dim, p)
	s.mu.Unlock()
}

func (s *stubSurface) SetHighlightRegion(r *models.Polygon) {
	s.mu.Lock()
	s.highlight = append(s.highlight, r)
	s.mu.Unlock()
}

var testBounds = Bounds{Min: 0, Max: 300}

func square() models.Polygon {
	return models.Polygon{Ring: []models.Point{
		{Lon: 13.3, Lat: 52.4},
		{Lon: 13.5, Lat: 52.4},
		{Lon: 13.5, Lat: 52.6},
		{Lon: 13.3, Lat: 52.6},
	}}
}

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }
