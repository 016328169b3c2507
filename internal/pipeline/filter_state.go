package pipeline

import (
	"strings"
	"sync"

	"street_trees/internal/models"
)

// Bounds is the global domain of the numeric field.
type Bounds struct {
	Min float64
	Max float64
}

// Full returns the range covering the whole domain.
func (b Bounds) Full() models.Range {
	return models.Range{Min: b.Min, Max: b.Max}
}

func (b Bounds) clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// FilterState holds the category, numeric range and region dimensions.
// It is the single mutable state shared by the pipeline.
type FilterState struct {
	bus    *EventBus
	bounds Bounds

	mu       sync.RWMutex
	category *string
	rng      models.Range
	region   *models.Polygon
}

// NewFilterState returns a state with no category, the full range and no region.
func NewFilterState(bus *EventBus, bounds Bounds) *FilterState {
	return &FilterState{bus: bus, bounds: bounds, rng: bounds.Full()}
}

// Bounds returns the global numeric domain.
func (f *FilterState) Bounds() Bounds { return f.bounds }

// SetCategory selects a species, or clears the dimension when name is nil or blank.
func (f *FilterState) SetCategory(name *string) {
	var c *string
	if name != nil {
		if s := strings.TrimSpace(*name); s != "" {
			c = &s
		}
	}
	f.mu.Lock()
	f.category = c
	f.mu.Unlock()
	f.notify(models.DimensionCategory)
}

// SetNumericRange sets the range clamped to the global bounds.
func (f *FilterState) SetNumericRange(min, max float64) error {
	if min > max {
		return &InvalidRangeError{Min: min, Max: max}
	}
	f.mu.Lock()
	f.rng = models.Range{Min: f.bounds.clamp(min), Max: f.bounds.clamp(max)}
	f.mu.Unlock()
	f.notify(models.DimensionRange)
	return nil
}

// SetRegion sets the geographic region, or clears it when region is nil.
func (f *FilterState) SetRegion(region *models.Polygon) error {
	var r *models.Polygon
	if region != nil {
		if err := region.Validate(); err != nil {
			return err
		}
		cp := models.Polygon{Ring: append([]models.Point(nil), region.Ring...)}
		r = &cp
	}
	f.mu.Lock()
	f.region = r
	f.mu.Unlock()
	f.notify(models.DimensionRegion)
	return nil
}

// Reset restores the defaults and emits one notification.
func (f *FilterState) Reset() {
	f.mu.Lock()
	f.category = nil
	f.rng = f.bounds.Full()
	f.region = nil
	f.mu.Unlock()
	f.notify(models.DimensionAll)
}

// Snapshot returns a copy of the current dimensions.
func (f *FilterState) Snapshot() models.FilterSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := models.FilterSnapshot{Range: f.rng}
	if f.category != nil {
		c := *f.category
		s.Category = &c
	}
	if f.region != nil {
		r := *f.region
		s.Region = &r
	}
	return s
}

// Predicate combines the active dimensions into one conjunction.
func (f *FilterState) Predicate() models.Predicate {
	return PredicateFor(f.Snapshot(), f.bounds)
}

func (f *FilterState) notify(d models.Dimension) {
	if f.bus == nil {
		return
	}
	f.bus.Emit(TopicFilterChange, models.FilterChange{Dimension: d, Snapshot: f.Snapshot()})
}

// PredicateFor builds the predicate of a snapshot. A range spanning the
// whole domain adds no clause, so an untouched state is tautological.
func PredicateFor(s models.FilterSnapshot, bounds Bounds) models.Predicate {
	var p models.Predicate
	if s.Category != nil {
		p = p.And(CategoryClause(*s.Category))
	}
	if s.Range != bounds.Full() {
		p = p.And(RangeClause(s.Range))
	}
	if s.Region != nil {
		p = p.And(RegionClause(*s.Region))
	}
	return p
}

// CategoryClause matches one species.
func CategoryClause(name string) models.Clause {
	return models.Clause{
		Dimension: models.DimensionCategory,
		SQL:       models.FieldSpecies + " = ?",
		Args:      []any{name},
	}
}

// RangeClause matches an inclusive diameter interval.
func RangeClause(r models.Range) models.Clause {
	return models.Clause{
		Dimension: models.DimensionRange,
		SQL:       models.FieldDiameter + " >= ? AND " + models.FieldDiameter + " <= ?",
		Args:      []any{r.Min, r.Max},
	}
}

// RegionClause matches points inside the polygon via the point_in_polygon
// SQL function registered by the dataset store.
func RegionClause(region models.Polygon) models.Clause {
	return models.Clause{
		Dimension: models.DimensionRegion,
		SQL:       "point_in_polygon(" + models.FieldLon + ", " + models.FieldLat + ", ?) = 1",
		Args:      []any{region.Encode()},
	}
}

// notNullClause keeps rows with a species, for grouped counts.
func notNullClause() models.Clause {
	return models.Clause{
		Dimension: models.DimensionCategory,
		SQL:       models.FieldSpecies + " IS NOT NULL",
	}
}
