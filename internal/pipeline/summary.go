package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"street_trees/internal/logger"
	"street_trees/internal/models"
)

// Summary query names, also used as metric labels.
const (
	QueryExtreme = "extreme"
	QueryModal   = "modal"
	QueryAverage = "average"
)

// SummaryConfig configures the aggregator.
type SummaryConfig struct {
	Bounds    Bounds
	Quiet     time.Duration
	Scheduler Scheduler
}

// SummaryAggregator computes the largest matching tree, the most frequent
// species and the average diameter for the active filters. The three
// queries of one recompute share a generation and run concurrently.
type SummaryAggregator struct {
	bus   *EventBus
	state *FilterState
	exec  *QueryExecutor
	coord *DebounceCoordinator
	cfg   SummaryConfig
	log   *logger.Logger

	mu     sync.RWMutex
	record models.SummaryRecord
}

func NewSummaryAggregator(bus *EventBus, state *FilterState, source DatasetSource, cfg SummaryConfig, log *logger.Logger) *SummaryAggregator {
	s := &SummaryAggregator{
		bus:   bus,
		state: state,
		exec:  NewQueryExecutor(source, log),
		cfg:   cfg,
		log:   log,
	}
	s.coord = NewDebounceCoordinator(DebounceConfig{
		Name:      "summary",
		Scheduler: cfg.Scheduler,
		Quiet:     cfg.Quiet,
		OnError:   s.reportError,
		Log:       log,
	})
	return s
}

// Recompute schedules a recompute after the default quiet period.
func (s *SummaryAggregator) Recompute() uint64 {
	return s.coord.Schedule(s.compute)
}

// RecomputeAfter schedules a recompute after delay.
func (s *SummaryAggregator) RecomputeAfter(delay time.Duration) uint64 {
	return s.coord.ScheduleAfter(delay, s.compute)
}

// Record returns the latest published summary.
func (s *SummaryAggregator) Record() models.SummaryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// Wait blocks until no recompute is pending.
func (s *SummaryAggregator) Wait() { s.coord.Wait() }

// Close drops pending work.
func (s *SummaryAggregator) Close() { s.coord.Close() }

// SummaryPredicates returns the predicates of the extreme/average queries
// and of the modal query. The modal query ignores the category filter.
func SummaryPredicates(snap models.FilterSnapshot, bounds Bounds) (full, modal models.Predicate) {
	full = PredicateFor(snap, bounds)
	modal = full.Without(models.DimensionCategory).And(notNullClause())
	return full, modal
}

func (s *SummaryAggregator) compute(ctx context.Context, gen uint64) (func(), error) {
	snap := s.state.Snapshot()
	if snap.Region == nil {
		return func() { s.publish(models.SummaryRecord{}, gen, nil) }, nil
	}
	full, modal := SummaryPredicates(snap, s.cfg.Bounds)

	var rec models.SummaryRecord
	var g errgroup.Group

	g.Go(func() error {
		res, err := s.exec.Execute(ctx, models.QueryRequest{
			Name:      QueryExtreme,
			Predicate: full,
			Aggregation: models.AggregationSpec{
				Statistic: models.StatisticTop,
				Field:     models.FieldDiameter,
				OrderBy:   models.FieldDiameter + " DESC",
				Limit:     1,
			},
			Generation: gen,
		})
		if err != nil {
			return err
		}
		if len(res.Features) > 0 {
			f := res.Features[0]
			rec.Extreme = &f
		}
		return nil
	})

	g.Go(func() error {
		res, err := s.exec.Execute(ctx, models.QueryRequest{
			Name:      QueryModal,
			Predicate: modal,
			Aggregation: models.AggregationSpec{
				Statistic: models.StatisticCount,
				Field:     models.FieldID,
				GroupBy:   []string{models.FieldSpecies, models.FieldLatin},
				OrderBy:   "count DESC",
				Limit:     1,
			},
			Generation: gen,
		})
		if err != nil {
			return err
		}
		if len(res.Groups) > 0 {
			c := res.Groups[0]
			rec.Modal = &c
		}
		return nil
	})

	g.Go(func() error {
		res, err := s.exec.Execute(ctx, models.QueryRequest{
			Name:      QueryAverage,
			Predicate: full,
			Aggregation: models.AggregationSpec{
				Statistic: models.StatisticAvg,
				Field:     models.FieldDiameter,
			},
			Generation: gen,
		})
		if err != nil {
			return err
		}
		rec.Average = res.Value
		return nil
	})

	// Each query writes only its own field; a failed one leaves it nil.
	err := g.Wait()
	if IsCancelled(err) {
		return nil, err
	}
	return func() { s.publish(rec, gen, err) }, nil
}

func (s *SummaryAggregator) publish(rec models.SummaryRecord, gen uint64, queryErr error) {
	s.mu.Lock()
	s.record = rec
	s.mu.Unlock()
	if queryErr != nil {
		s.reportError(gen, queryErr)
	}
	if s.bus != nil {
		s.bus.Emit(TopicSummary, rec)
	}
}

func (s *SummaryAggregator) reportError(gen uint64, err error) {
	if s.log != nil {
		s.log.Errorw("summary_query_failed", "generation", gen, "err", err)
	}
	if s.bus != nil {
		s.bus.Emit(TopicQueryError, models.QueryFailure{Component: "summary", Generation: gen, Message: err.Error()})
	}
}
