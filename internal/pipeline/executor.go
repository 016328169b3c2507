package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"street_trees/internal/logger"
	"street_trees/internal/metrics"
	"street_trees/internal/models"
)

// QueryExecutor runs dataset queries and drops results of superseded
// generations. Issuing a newer generation cancels the contexts of older
// in-flight calls; a result that still arrives late is reported as
// ErrCancelled instead of being returned.
type QueryExecutor struct {
	source DatasetSource
	log    *logger.Logger

	mu       sync.Mutex
	latest   uint64
	inflight map[uint64][]context.CancelFunc
}

func NewQueryExecutor(source DatasetSource, log *logger.Logger) *QueryExecutor {
	return &QueryExecutor{
		source:   source,
		log:      log,
		inflight: make(map[uint64][]context.CancelFunc),
	}
}

// Latest returns the highest generation seen so far.
func (e *QueryExecutor) Latest() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Execute runs an aggregate query for req.Generation.
func (e *QueryExecutor) Execute(ctx context.Context, req models.QueryRequest) (models.QueryResult, error) {
	var res models.QueryResult
	err := e.run(ctx, req.Generation, req.Name, func(ctx context.Context) error {
		var err error
		res, err = e.source.Query(ctx, req.Predicate, req.Aggregation)
		return err
	})
	if err != nil {
		return models.QueryResult{}, err
	}
	res.Generation = req.Generation
	return res, nil
}

// HistogramRequest asks for a pre-binned count histogram over field.
type HistogramRequest struct {
	Predicate  models.Predicate
	Field      string
	BinCount   int
	Min, Max   float64
	Generation uint64
}

// ExecuteHistogram runs a histogram query for req.Generation.
func (e *QueryExecutor) ExecuteHistogram(ctx context.Context, req HistogramRequest) ([]models.HistogramBin, error) {
	var bins []models.HistogramBin
	err := e.run(ctx, req.Generation, "histogram", func(ctx context.Context) error {
		var err error
		bins, err = e.source.QueryHistogram(ctx, req.Predicate, req.Field, req.BinCount, req.Min, req.Max)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bins, nil
}

func (e *QueryExecutor) run(ctx context.Context, gen uint64, name string, call func(context.Context) error) error {
	cctx, cancel, err := e.begin(ctx, gen)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(name, metrics.OutcomeCancelled).Inc()
		return err
	}
	defer cancel()

	start := time.Now()
	callErr := call(cctx)
	metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	err = e.settle(gen, name, callErr)
	switch {
	case err == nil:
		metrics.QueriesTotal.WithLabelValues(name, metrics.OutcomeOK).Inc()
	case IsCancelled(err):
		metrics.QueriesTotal.WithLabelValues(name, metrics.OutcomeCancelled).Inc()
	default:
		metrics.QueriesTotal.WithLabelValues(name, metrics.OutcomeError).Inc()
	}
	return err
}

// begin registers gen as in flight. Older generations get cancelled.
func (e *QueryExecutor) begin(ctx context.Context, gen uint64) (context.Context, context.CancelFunc, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen < e.latest {
		return nil, nil, ErrCancelled
	}
	if gen > e.latest {
		e.latest = gen
		for g, cancels := range e.inflight {
			if g < gen {
				for _, cancel := range cancels {
					cancel()
				}
				delete(e.inflight, g)
			}
		}
	}
	cctx, cancel := context.WithCancel(ctx)
	e.inflight[gen] = append(e.inflight[gen], cancel)
	return cctx, cancel, nil
}

// settle classifies the outcome once the remote call returned.
func (e *QueryExecutor) settle(gen uint64, name string, callErr error) error {
	e.mu.Lock()
	stale := gen < e.latest
	e.mu.Unlock()

	if stale {
		return ErrCancelled
	}
	if callErr == nil {
		return nil
	}
	if errors.Is(callErr, context.Canceled) || IsCancelled(callErr) {
		return ErrCancelled
	}
	if e.log != nil {
		e.log.Debugw("query_failed", "query", name, "generation", gen, "err", callErr)
	}
	return &QueryError{Query: name, Err: callErr}
}
