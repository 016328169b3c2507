package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"street_trees/internal/logger"
	"street_trees/internal/models"
	"street_trees/internal/pipeline"
)

const activityQueueSize = 256

// ActivityRecorder turns pipeline notifications into activity log entries.
// Bus handlers only enqueue; Run writes the entries.
type ActivityRecorder struct {
	log   EventRecorder
	lg    *logger.Logger
	queue chan models.ExplorerEvent

	// serializes attributed commands
	cmdMu sync.Mutex

	mu      sync.Mutex
	playing bool
	actor   int // viewer of the running command, 0 outside Attribute
	unsub   []func()
}

// EventRecorder persists one activity entry.
type EventRecorder interface {
	Record(ctx context.Context, e models.ExplorerEvent) error
}

func NewActivityRecorder(rec EventRecorder, lg *logger.Logger) *ActivityRecorder {
	return &ActivityRecorder{log: rec, lg: lg, queue: make(chan models.ExplorerEvent, activityQueueSize)}
}

// Attach subscribes to the topics worth logging.
func (a *ActivityRecorder) Attach(ex Explorer) {
	a.unsub = append(a.unsub,
		ex.Subscribe(pipeline.TopicAnimationState, a.onAnimation),
		ex.Subscribe(pipeline.TopicFilterChange, a.onFilterChange),
		ex.Subscribe(pipeline.TopicQueryError, a.onQueryError),
	)
}

// Detach removes the subscriptions.
func (a *ActivityRecorder) Detach() {
	for _, fn := range a.unsub {
		fn()
	}
	a.unsub = nil
}

// Attribute runs cmd on behalf of userID. Animation and region entries
// emitted while cmd runs carry that viewer; the bus delivers synchronously.
func (a *ActivityRecorder) Attribute(userID int, cmd func() error) error {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	a.setActor(userID)
	defer a.setActor(0)
	return cmd()
}

func (a *ActivityRecorder) setActor(userID int) {
	a.mu.Lock()
	a.actor = userID
	a.mu.Unlock()
}

func (a *ActivityRecorder) currentActor() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.actor
}

// Run writes queued entries until ctx is cancelled.
func (a *ActivityRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-a.queue:
			if err := a.log.Record(ctx, e); err != nil && a.lg != nil {
				a.lg.Errorw("activity_record_failed", "type", e.Type, "err", err)
			}
		}
	}
}

func (a *ActivityRecorder) onAnimation(payload any) {
	st, ok := payload.(models.AnimationState)
	if !ok {
		return
	}
	a.mu.Lock()
	was := a.playing
	a.playing = st.Playing
	actor := a.actor
	a.mu.Unlock()

	switch {
	case st.Playing && !was:
		a.enqueue(models.EventAnimationStart, actor, fmt.Sprintf("sweep started %s at %.0f", st.Direction, st.Index),
			map[string]any{"direction": st.Direction, "index": st.Index})
	case !st.Playing && was:
		a.enqueue(models.EventAnimationStop, actor, fmt.Sprintf("sweep stopped at %.0f", st.Index),
			map[string]any{"direction": st.Direction, "index": st.Index})
	}
}

func (a *ActivityRecorder) onFilterChange(payload any) {
	change, ok := payload.(models.FilterChange)
	if !ok || change.Dimension != models.DimensionRegion {
		return
	}
	actor := a.currentActor()
	if change.Snapshot.Region == nil {
		a.enqueue(models.EventRegionChange, actor, "region cleared", nil)
		return
	}
	a.enqueue(models.EventRegionChange, actor, "region set",
		map[string]any{"vertices": len(change.Snapshot.Region.Ring)})
}

func (a *ActivityRecorder) onQueryError(payload any) {
	f, ok := payload.(models.QueryFailure)
	if !ok {
		return
	}
	a.enqueue(models.EventQueryError, 0, f.Message,
		map[string]any{"component": f.Component, "generation": f.Generation})
}

func (a *ActivityRecorder) enqueue(typ string, userID int, msg string, meta map[string]any) {
	e := models.ExplorerEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: msg,
		UserID:      userID,
	}
	if meta != nil {
		e.Metadata = meta
	}
	select {
	case a.queue <- e:
	default:
		if a.lg != nil {
			a.lg.Warnw("activity_queue_full", "type", typ)
		}
	}
}
