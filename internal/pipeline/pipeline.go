package pipeline

import (
	"context"
	"sync"
	"time"

	"street_trees/internal/logger"
	"street_trees/internal/models"
)

// TopSpeciesLimit is the length of the species list.
const TopSpeciesLimit = 10

// Config wires the pipeline components.
type Config struct {
	Bounds             Bounds
	BinCount           int
	AnimationDelay     time.Duration
	AnimationWindow    float64
	AnimationStep      float64
	QuietPeriod        time.Duration
	RangeDebounce      time.Duration
	HistogramCacheSize int
	Scheduler          Scheduler
}

// Pipeline owns the filter state and routes user input through the
// recompute chain: filter-change, debounce, query, publish.
type Pipeline struct {
	bus       *EventBus
	state     *FilterState
	source    DatasetSource
	surface   MapSurface
	summary   *SummaryAggregator
	histogram *HistogramBinsProvider
	animation *AnimationController
	cfg       Config
	log       *logger.Logger
	unsub     []func()

	// held across the playing check and the category write, and by Play
	controlMu sync.Mutex

	mu           sync.Mutex
	searchCenter *models.Point
	searchRadius float64
}

func New(source DatasetSource, surface MapSurface, controls Controls, cfg Config, log *logger.Logger) (*Pipeline, error) {
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTimerScheduler()
	}
	bus := NewEventBus()
	state := NewFilterState(bus, cfg.Bounds)

	histogram, err := NewHistogramBinsProvider(bus, state, source, HistogramConfig{
		Field:     models.FieldDiameter,
		BinCount:  cfg.BinCount,
		Bounds:    cfg.Bounds,
		CacheSize: cfg.HistogramCacheSize,
		Quiet:     cfg.QuietPeriod,
		Scheduler: cfg.Scheduler,
	}, log)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		bus:       bus,
		state:     state,
		source:    source,
		surface:   surface,
		histogram: histogram,
		summary: NewSummaryAggregator(bus, state, source, SummaryConfig{
			Bounds:    cfg.Bounds,
			Quiet:     cfg.QuietPeriod,
			Scheduler: cfg.Scheduler,
		}, log),
		animation: NewAnimationController(bus, state, AnimationConfig{
			Bounds:    cfg.Bounds,
			Window:    cfg.AnimationWindow,
			Step:      cfg.AnimationStep,
			Delay:     cfg.AnimationDelay,
			Scheduler: cfg.Scheduler,
			Controls:  controls,
		}, log),
		cfg: cfg,
		log: log,
	}
	p.unsub = append(p.unsub, bus.On(TopicFilterChange, func(payload any) {
		if change, ok := payload.(models.FilterChange); ok {
			p.onFilterChange(change)
		}
	}))
	return p, nil
}

// Start publishes the initial histogram and summary.
func (p *Pipeline) Start() {
	p.histogram.Recompute()
	p.summary.Recompute()
}

// Close stops the sweep and drops pending recomputes.
func (p *Pipeline) Close() {
	p.animation.Stop()
	p.histogram.Close()
	p.summary.Close()
	for _, fn := range p.unsub {
		fn()
	}
}

// Wait blocks until both recompute chains are idle.
func (p *Pipeline) Wait() {
	p.histogram.Wait()
	p.summary.Wait()
}

func (p *Pipeline) onFilterChange(change models.FilterChange) {
	if p.surface != nil {
		p.surface.SetDimEffect(PredicateFor(change.Snapshot, p.cfg.Bounds))
		if change.Dimension == models.DimensionRegion || change.Dimension == models.DimensionAll {
			p.surface.SetHighlightRegion(change.Snapshot.Region)
		}
	}
	p.histogram.OnFilterChange(change)
	if change.Dimension == models.DimensionRange && p.cfg.RangeDebounce > 0 {
		p.summary.RecomputeAfter(p.cfg.RangeDebounce)
		return
	}
	p.summary.Recompute()
}

// Bus exposes the notification topics to outer layers.
func (p *Pipeline) Bus() *EventBus { return p.bus }

// Subscribe registers fn for a pipeline topic.
func (p *Pipeline) Subscribe(topic string, fn Handler) func() { return p.bus.On(topic, fn) }

func (p *Pipeline) Filters() models.FilterSnapshot { return p.state.Snapshot() }

func (p *Pipeline) Predicate() models.Predicate { return p.state.Predicate() }

func (p *Pipeline) Summary() models.SummaryRecord { return p.summary.Record() }

func (p *Pipeline) Histogram() []models.HistogramBin { return p.histogram.Bins() }

func (p *Pipeline) Animation() models.AnimationState { return p.animation.State() }

// SelectCategory filters by species. Rejected while the sweep plays.
func (p *Pipeline) SelectCategory(name string) error {
	p.controlMu.Lock()
	defer p.controlMu.Unlock()
	if p.animation.Playing() {
		return ErrCategoryLocked
	}
	p.state.SetCategory(&name)
	return nil
}

// ClearCategory removes the species filter.
func (p *Pipeline) ClearCategory() error {
	p.controlMu.Lock()
	defer p.controlMu.Unlock()
	if p.animation.Playing() {
		return ErrCategoryLocked
	}
	p.state.SetCategory(nil)
	return nil
}

// ChangeNumericRange sets the diameter range from user input.
func (p *Pipeline) ChangeNumericRange(min, max float64) error {
	if min > max {
		return &InvalidRangeError{Min: min, Max: max}
	}
	p.animation.Interrupt()
	return p.state.SetNumericRange(min, max)
}

// DrawRegion sets a user-drawn region.
func (p *Pipeline) DrawRegion(region models.Polygon) error {
	if err := region.Validate(); err != nil {
		return err
	}
	p.animation.Interrupt()
	p.mu.Lock()
	p.searchCenter = nil
	p.searchRadius = 0
	p.mu.Unlock()
	return p.state.SetRegion(&region)
}

// DrawRegionAround sets the region to a circle of radiusKm around center.
func (p *Pipeline) DrawRegionAround(center models.Point, radiusKm float64) error {
	if radiusKm <= 0 {
		return ErrInvalidRadius
	}
	region := models.CircleAround(center, radiusKm)
	if err := region.Validate(); err != nil {
		return err
	}
	p.animation.Interrupt()
	p.mu.Lock()
	c := center
	p.searchCenter = &c
	p.searchRadius = radiusKm
	p.mu.Unlock()
	return p.state.SetRegion(&region)
}

// SetSearchDistance re-buffers the region around the last search location.
func (p *Pipeline) SetSearchDistance(radiusKm float64) error {
	p.mu.Lock()
	center := p.searchCenter
	p.mu.Unlock()
	if center == nil {
		return ErrNoSearchCenter
	}
	return p.DrawRegionAround(*center, radiusKm)
}

// SearchDistance returns the radius of the current search region, 0 if none.
func (p *Pipeline) SearchDistance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.searchRadius
}

// ClearRegion removes the region filter.
func (p *Pipeline) ClearRegion() error {
	p.animation.Interrupt()
	p.mu.Lock()
	p.searchCenter = nil
	p.searchRadius = 0
	p.mu.Unlock()
	return p.state.SetRegion(nil)
}

// Play starts the sweep. It cannot interleave with a category change.
func (p *Pipeline) Play(dir models.Direction) {
	p.controlMu.Lock()
	defer p.controlMu.Unlock()
	p.animation.Play(dir)
}

func (p *Pipeline) Stop() { p.animation.Stop() }

// ResetAnimation rewinds the sweep and restores the full range.
func (p *Pipeline) ResetAnimation() error { return p.animation.Reset() }

// TopSpecies lists the most frequent species of the whole dataset.
func (p *Pipeline) TopSpecies(ctx context.Context) ([]models.CategoryCount, error) {
	res, err := p.source.Query(ctx, models.Predicate{}.And(notNullClause()), models.AggregationSpec{
		Statistic: models.StatisticCount,
		Field:     models.FieldID,
		GroupBy:   []string{models.FieldSpecies, models.FieldLatin},
		OrderBy:   "count DESC",
		Limit:     TopSpeciesLimit,
	})
	if err != nil {
		return nil, &QueryError{Query: "species", Err: err}
	}
	return res.Groups, nil
}
