package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"street_trees/internal/logger"
	"street_trees/internal/metrics"
	"street_trees/internal/models"
)

// HistogramConfig configures the bins provider.
type HistogramConfig struct {
	Field     string
	BinCount  int
	Bounds    Bounds
	CacheSize int
	Quiet     time.Duration
	Scheduler Scheduler
}

// HistogramBinsProvider keeps a fixed-width count histogram of the numeric
// field scoped by the category and region filters. The numeric range never
// affects the bins; it only decides which bins are highlighted.
type HistogramBinsProvider struct {
	bus   *EventBus
	state *FilterState
	exec  *QueryExecutor
	coord *DebounceCoordinator
	cache *lru.Cache[string, []models.HistogramBin]
	cfg   HistogramConfig
	log   *logger.Logger

	mu   sync.RWMutex
	bins []models.HistogramBin
}

func NewHistogramBinsProvider(bus *EventBus, state *FilterState, source DatasetSource, cfg HistogramConfig, log *logger.Logger) (*HistogramBinsProvider, error) {
	if cfg.BinCount <= 0 {
		cfg.BinCount = 50
	}
	if cfg.Field == "" {
		cfg.Field = models.FieldDiameter
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	cache, err := lru.New[string, []models.HistogramBin](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	h := &HistogramBinsProvider{
		bus:   bus,
		state: state,
		exec:  NewQueryExecutor(source, log),
		cache: cache,
		cfg:   cfg,
		log:   log,
	}
	h.coord = NewDebounceCoordinator(DebounceConfig{
		Name:      "histogram",
		Scheduler: cfg.Scheduler,
		Quiet:     cfg.Quiet,
		OnError:   h.reportError,
		Log:       log,
	})
	return h, nil
}

// OnFilterChange schedules a recompute unless only the numeric range moved.
func (h *HistogramBinsProvider) OnFilterChange(change models.FilterChange) {
	if change.Dimension == models.DimensionRange {
		return
	}
	h.Recompute()
}

// Recompute schedules a histogram query for the current filters.
func (h *HistogramBinsProvider) Recompute() uint64 {
	return h.coord.Schedule(h.compute)
}

// Bins returns the latest published bins.
func (h *HistogramBinsProvider) Bins() []models.HistogramBin {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bins
}

// Wait blocks until no recompute is pending.
func (h *HistogramBinsProvider) Wait() { h.coord.Wait() }

// Close drops pending work.
func (h *HistogramBinsProvider) Close() { h.coord.Close() }

func (h *HistogramBinsProvider) compute(ctx context.Context, gen uint64) (func(), error) {
	p := h.state.Predicate().Without(models.DimensionRange)
	key := p.String()

	if cached, ok := h.cache.Get(key); ok {
		metrics.HistogramCacheHits.Inc()
		return func() { h.publish(cached) }, nil
	}

	raw, err := h.exec.ExecuteHistogram(ctx, HistogramRequest{
		Predicate:  p,
		Field:      h.cfg.Field,
		BinCount:   h.cfg.BinCount,
		Min:        h.cfg.Bounds.Min,
		Max:        h.cfg.Bounds.Max,
		Generation: gen,
	})
	if err != nil {
		return nil, err
	}
	bins := rebin(raw, h.cfg.BinCount, h.cfg.Bounds)
	h.cache.Add(key, bins)
	return func() { h.publish(bins) }, nil
}

func (h *HistogramBinsProvider) publish(bins []models.HistogramBin) {
	h.mu.Lock()
	h.bins = bins
	h.mu.Unlock()
	if h.bus != nil {
		h.bus.Emit(TopicHistogram, bins)
	}
}

func (h *HistogramBinsProvider) reportError(gen uint64, err error) {
	if h.log != nil {
		h.log.Errorw("histogram_query_failed", "generation", gen, "err", err)
	}
	if h.bus != nil {
		h.bus.Emit(TopicQueryError, models.QueryFailure{Component: "histogram", Generation: gen, Message: err.Error()})
	}
}

// EmptyBins returns binCount contiguous zero bins covering bounds.
func EmptyBins(binCount int, bounds Bounds) []models.HistogramBin {
	width := (bounds.Max - bounds.Min) / float64(binCount)
	bins := make([]models.HistogramBin, binCount)
	for i := range bins {
		bins[i].RangeStart = bounds.Min + float64(i)*width
		bins[i].RangeEnd = bounds.Min + float64(i+1)*width
	}
	bins[binCount-1].RangeEnd = bounds.Max
	return bins
}

// rebin maps whatever the source returned onto exactly binCount contiguous
// bins. Source bins are assigned by their start value; missing bins stay zero.
func rebin(raw []models.HistogramBin, binCount int, bounds Bounds) []models.HistogramBin {
	bins := EmptyBins(binCount, bounds)
	width := (bounds.Max - bounds.Min) / float64(binCount)
	if width <= 0 {
		return bins
	}
	for _, b := range raw {
		i := int(math.Floor((b.RangeStart - bounds.Min) / width))
		if i < 0 {
			i = 0
		}
		if i >= binCount {
			i = binCount - 1
		}
		bins[i].Count += b.Count
	}
	return bins
}
