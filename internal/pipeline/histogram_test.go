package pipeline

import (
	"context"
	"errors"
	"testing"

	"street_trees/internal/models"
)

func binsFromSource(_ context.Context, _ models.Predicate, binCount int, min, max float64) ([]models.HistogramBin, error) {
	// sparse answer: only two bins have rows
	w := (max - min) / float64(binCount)
	return []models.HistogramBin{
		{RangeStart: min, RangeEnd: min + w, Count: 3},
		{RangeStart: min + 10*w, RangeEnd: min + 11*w, Count: 7},
	}, nil
}

func newTestHistogram(t *testing.T, src *stubSource) (*HistogramBinsProvider, *FilterState, *fakeScheduler, *EventBus) {
	t.Helper()
	bus := NewEventBus()
	state := NewFilterState(bus, testBounds)
	sched := newFakeScheduler()
	h, err := NewHistogramBinsProvider(bus, state, src, HistogramConfig{
		BinCount:  50,
		Bounds:    testBounds,
		CacheSize: 8,
		Scheduler: sched,
	}, nil)
	if err != nil {
		t.Fatalf("NewHistogramBinsProvider: %v", err)
	}
	bus.On(TopicFilterChange, func(p any) { h.OnFilterChange(p.(models.FilterChange)) })
	return h, state, sched, bus
}

func TestHistogramCoversDomain(t *testing.T) {
	src := &stubSource{histFn: binsFromSource}
	h, _, sched, bus := newTestHistogram(t, src)
	var published []models.HistogramBin
	bus.On(TopicHistogram, func(p any) { published = p.([]models.HistogramBin) })

	h.Recompute()
	sched.Advance(0)
	h.Wait()

	bins := h.Bins()
	if len(bins) != 50 || len(published) != 50 {
		t.Fatalf("got %d bins (%d published), want 50", len(bins), len(published))
	}
	if bins[0].RangeStart != 0 || bins[49].RangeEnd != 300 {
		t.Fatalf("bins span [%v,%v]", bins[0].RangeStart, bins[49].RangeEnd)
	}
	for i := 1; i < len(bins); i++ {
		if bins[i].RangeStart != bins[i-1].RangeEnd {
			t.Fatalf("gap between bin %d and %d", i-1, i)
		}
	}
	if bins[0].Count != 3 || bins[10].Count != 7 || bins[5].Count != 0 {
		t.Fatalf("counts misplaced: %d %d %d", bins[0].Count, bins[10].Count, bins[5].Count)
	}
}

func TestHistogramIgnoresRangeOnlyChanges(t *testing.T) {
	src := &stubSource{histFn: binsFromSource}
	h, state, sched, _ := newTestHistogram(t, src)

	if err := state.SetNumericRange(10, 20); err != nil {
		t.Fatal(err)
	}
	sched.Advance(0)
	h.Wait()
	if n := src.histogramCount(); n != 0 {
		t.Fatalf("range change issued %d histogram queries", n)
	}

	state.SetCategory(strPtr("Linde"))
	sched.Advance(0)
	h.Wait()
	if n := src.histogramCount(); n != 1 {
		t.Fatalf("category change issued %d histogram queries, want 1", n)
	}
	p := src.histograms[0]
	if p.Has(models.DimensionRange) || !p.Has(models.DimensionCategory) {
		t.Fatalf("histogram predicate %s should carry category only", p)
	}
}

func TestHistogramServesFromCache(t *testing.T) {
	src := &stubSource{histFn: binsFromSource}
	h, state, sched, _ := newTestHistogram(t, src)

	state.SetCategory(strPtr("Linde"))
	sched.Advance(0)
	h.Wait()
	state.SetCategory(nil)
	sched.Advance(0)
	h.Wait()
	state.SetCategory(strPtr("Linde"))
	sched.Advance(0)
	h.Wait()

	if n := src.histogramCount(); n != 2 {
		t.Fatalf("histogram queries=%d, want 2", n)
	}
	if h.Bins()[10].Count != 7 {
		t.Fatalf("cached bins not published")
	}
}

func TestHistogramErrorKeepsLastBins(t *testing.T) {
	src := &stubSource{histFn: binsFromSource}
	h, state, sched, bus := newTestHistogram(t, src)
	var failures []models.QueryFailure
	bus.On(TopicQueryError, func(p any) { failures = append(failures, p.(models.QueryFailure)) })

	h.Recompute()
	sched.Advance(0)
	h.Wait()

	src.mu.Lock()
	src.histFn = func(context.Context, models.Predicate, int, float64, float64) ([]models.HistogramBin, error) {
		return nil, errors.New("offline")
	}
	src.mu.Unlock()
	state.SetCategory(strPtr("Ahorn"))
	sched.Advance(0)
	h.Wait()

	if len(failures) != 1 || failures[0].Component != "histogram" {
		t.Fatalf("failures=%+v", failures)
	}
	if h.Bins()[0].Count != 3 {
		t.Fatalf("failed recompute replaced the bins")
	}
}

func TestEmptyBins(t *testing.T) {
	bins := EmptyBins(3, Bounds{Min: 0, Max: 10})
	if len(bins) != 3 || bins[2].RangeEnd != 10 || bins[1].RangeStart != bins[0].RangeEnd {
		t.Fatalf("unexpected bins %+v", bins)
	}
}
