package pipeline

import (
	"errors"
	"strings"
	"testing"

	"street_trees/internal/models"
)

func TestFilterStateDefaultsAreTautology(t *testing.T) {
	f := NewFilterState(nil, testBounds)
	p := f.Predicate()
	if !p.IsTautology() || p.Where() != models.TautologyWhere {
		t.Fatalf("default predicate = %q", p.Where())
	}
}

func TestFilterStateSetNumericRange(t *testing.T) {
	cases := []struct {
		name     string
		min, max float64
		want     models.Range
		wantErr  bool
	}{
		{"inside", 50, 150, models.Range{Min: 50, Max: 150}, false},
		{"clamped", -10, 400, models.Range{Min: 0, Max: 300}, false},
		{"equal", 20, 20, models.Range{Min: 20, Max: 20}, false},
		{"inverted", 150, 50, models.Range{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bus := NewEventBus()
			emitted := 0
			bus.On(TopicFilterChange, func(any) { emitted++ })
			f := NewFilterState(bus, testBounds)

			err := f.SetNumericRange(tc.min, tc.max)
			if tc.wantErr {
				var ire *InvalidRangeError
				if !errors.As(err, &ire) {
					t.Fatalf("err=%v, want InvalidRangeError", err)
				}
				if emitted != 0 {
					t.Fatalf("rejected range emitted %d notifications", emitted)
				}
				if f.Snapshot().Range != testBounds.Full() {
					t.Fatalf("rejected range changed state")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got := f.Snapshot().Range; got != tc.want {
				t.Fatalf("range=%v, want %v", got, tc.want)
			}
			if emitted != 1 {
				t.Fatalf("emitted=%d, want 1", emitted)
			}
		})
	}
}

func TestFilterStateNotifiesWithDimension(t *testing.T) {
	bus := NewEventBus()
	var dims []models.Dimension
	bus.On(TopicFilterChange, func(p any) { dims = append(dims, p.(models.FilterChange).Dimension) })
	f := NewFilterState(bus, testBounds)

	f.SetCategory(strPtr("Linde"))
	_ = f.SetNumericRange(10, 20)
	r := square()
	_ = f.SetRegion(&r)
	f.Reset()

	want := []models.Dimension{models.DimensionCategory, models.DimensionRange, models.DimensionRegion, models.DimensionAll}
	if len(dims) != len(want) {
		t.Fatalf("dims=%v, want %v", dims, want)
	}
	for i := range want {
		if dims[i] != want[i] {
			t.Fatalf("dims=%v, want %v", dims, want)
		}
	}
	if !f.Predicate().IsTautology() {
		t.Fatalf("reset did not restore defaults: %s", f.Predicate())
	}
}

func TestFilterStateBlankCategoryClears(t *testing.T) {
	f := NewFilterState(nil, testBounds)
	f.SetCategory(strPtr("Eiche"))
	f.SetCategory(strPtr("  "))
	if f.Snapshot().Category != nil {
		t.Fatalf("blank category should clear the filter")
	}
}

func TestFilterStateRejectsBadRegion(t *testing.T) {
	f := NewFilterState(nil, testBounds)
	bad := models.Polygon{Ring: []models.Point{{Lon: 1, Lat: 1}}}
	if err := f.SetRegion(&bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if f.Snapshot().Region != nil {
		t.Fatalf("invalid region stored")
	}
}

func TestFilterStateSnapshotIsCopy(t *testing.T) {
	f := NewFilterState(nil, testBounds)
	r := square()
	_ = f.SetRegion(&r)
	r.Ring[0].Lon = 0

	snap := f.Snapshot()
	if snap.Region.Ring[0].Lon != 13.3 {
		t.Fatalf("state aliased caller polygon")
	}
}

func TestPredicateCombinesAllDimensions(t *testing.T) {
	f := NewFilterState(nil, testBounds)
	r := square()
	_ = f.SetRegion(&r)
	f.SetCategory(strPtr("Oak"))
	_ = f.SetNumericRange(50, 150)

	p := f.Predicate()
	for _, d := range []models.Dimension{models.DimensionCategory, models.DimensionRange, models.DimensionRegion} {
		if !p.Has(d) {
			t.Fatalf("predicate misses %s: %s", d, p)
		}
	}
	s := p.String()
	for _, part := range []string{"species = 'Oak'", "diameter >= 50 AND diameter <= 150", "point_in_polygon(lon, lat, '13.3 52.4,"} {
		if !strings.Contains(s, part) {
			t.Fatalf("predicate %q misses %q", s, part)
		}
	}
	if n := strings.Count(p.Where(), " AND ("); n != 2 {
		t.Fatalf("want 3 conjoined clauses, got %q", p.Where())
	}
}
