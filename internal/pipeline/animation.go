package pipeline

import (
	"sync"
	"time"

	"street_trees/internal/logger"
	"street_trees/internal/metrics"
	"street_trees/internal/models"
)

// AnimationConfig configures the sweep.
type AnimationConfig struct {
	Bounds    Bounds
	Window    float64
	Step      float64
	Delay     time.Duration
	Scheduler Scheduler
	Controls  Controls
}

// AnimationController sweeps a window of the numeric range across the
// domain. It is Idle until played and always returns to Idle on stop,
// interruption or when the window reaches the end of the domain.
type AnimationController struct {
	bus   *EventBus
	state *FilterState
	cfg   AnimationConfig
	log   *logger.Logger

	mu        sync.Mutex
	status    models.AnimationStatus
	direction models.Direction
	index     float64
	token     uint64
	cancel    CancelFunc
}

func NewAnimationController(bus *EventBus, state *FilterState, cfg AnimationConfig, log *logger.Logger) *AnimationController {
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewTimerScheduler()
	}
	if cfg.Step <= 0 {
		cfg.Step = 1
	}
	return &AnimationController{
		bus:       bus,
		state:     state,
		cfg:       cfg,
		log:       log,
		status:    models.AnimationIdle,
		direction: models.DirectionForward,
		index:     cfg.Bounds.Min,
	}
}

// State returns a snapshot of the sweep.
func (a *AnimationController) State() models.AnimationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

// Playing reports whether a sweep is running.
func (a *AnimationController) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status != models.AnimationIdle
}

// Play starts the sweep in dir. Playing in the other direction restarts it.
func (a *AnimationController) Play(dir models.Direction) {
	if dir != models.DirectionReverse {
		dir = models.DirectionForward
	}

	a.mu.Lock()
	if a.status != models.AnimationIdle && a.direction == dir {
		a.mu.Unlock()
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if dir != a.direction {
		a.index = a.resetIndex(dir)
	}
	a.direction = dir
	a.status = playingStatus(dir)
	a.token++
	token := a.token
	// first tick on the next frame
	a.cancel = a.cfg.Scheduler.AfterFunc(0, func() { a.tick(token) })
	st := a.stateLocked()
	a.mu.Unlock()

	metrics.AnimationPlaying.Set(1)
	if a.log != nil {
		a.log.Infow("animation_started", "direction", dir.String(), "index", st.Index)
	}
	a.setControls(false)
	a.emit(st)
}

// Stop halts the sweep and keeps the current index.
func (a *AnimationController) Stop() {
	a.halt("stopped")
}

// Interrupt halts a running sweep because the user touched another filter.
func (a *AnimationController) Interrupt() {
	a.halt("interrupted")
}

// Reset moves the index back to the start of the current direction and
// restores the full numeric range.
func (a *AnimationController) Reset() error {
	a.mu.Lock()
	if a.status != models.AnimationIdle {
		a.mu.Unlock()
		return ErrAnimationPlaying
	}
	a.index = a.resetIndex(a.direction)
	st := a.stateLocked()
	a.mu.Unlock()

	if a.state != nil {
		full := a.cfg.Bounds.Full()
		if err := a.state.SetNumericRange(full.Min, full.Max); err != nil {
			return err
		}
	}
	a.emit(st)
	return nil
}

func (a *AnimationController) halt(reason string) {
	a.mu.Lock()
	if a.status == models.AnimationIdle {
		a.mu.Unlock()
		return
	}
	a.stopLocked()
	st := a.stateLocked()
	a.mu.Unlock()
	a.finish(st, reason)
}

func (a *AnimationController) tick(token uint64) {
	a.mu.Lock()
	if token != a.token || a.status == models.AnimationIdle {
		a.mu.Unlock()
		return
	}
	lo, hi := a.index, a.index+a.cfg.Window
	done := a.atBoundary()
	if done {
		a.index = a.resetIndex(a.direction)
		a.stopLocked()
	} else {
		a.index = a.clampIndex(a.index + a.cfg.Step*float64(a.direction))
		a.cancel = a.cfg.Scheduler.AfterFunc(a.cfg.Delay, func() { a.tick(token) })
	}
	st := a.stateLocked()
	a.mu.Unlock()

	metrics.AnimationTicks.Inc()
	if a.state != nil {
		if err := a.state.SetNumericRange(lo, hi); err != nil && a.log != nil {
			a.log.Errorw("animation_range_rejected", "min", lo, "max", hi, "err", err)
		}
	}
	if done {
		a.finish(st, "completed")
		return
	}
	a.emit(st)
}

func (a *AnimationController) atBoundary() bool {
	if a.direction == models.DirectionReverse {
		return a.index <= a.cfg.Bounds.Min
	}
	return a.index+a.cfg.Window >= a.cfg.Bounds.Max
}

func (a *AnimationController) stopLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.token++
	a.status = models.AnimationIdle
}

func (a *AnimationController) finish(st models.AnimationState, reason string) {
	metrics.AnimationPlaying.Set(0)
	if a.log != nil {
		a.log.Infow("animation_stopped", "reason", reason, "index", st.Index)
	}
	a.setControls(true)
	a.emit(st)
}

func (a *AnimationController) resetIndex(dir models.Direction) float64 {
	if dir == models.DirectionReverse {
		return a.cfg.Bounds.Max - a.cfg.Window
	}
	return a.cfg.Bounds.Min
}

func (a *AnimationController) clampIndex(v float64) float64 {
	if v < a.cfg.Bounds.Min {
		return a.cfg.Bounds.Min
	}
	if hi := a.cfg.Bounds.Max - a.cfg.Window; v > hi {
		return hi
	}
	return v
}

func (a *AnimationController) setControls(enabled bool) {
	c := a.cfg.Controls
	if c == nil {
		return
	}
	c.SetCategoryListEnabled(enabled)
	c.SetResetEnabled(enabled)
	c.FocusMap()
}

func (a *AnimationController) emit(st models.AnimationState) {
	if a.bus != nil {
		a.bus.Emit(TopicAnimationState, st)
	}
}

func (a *AnimationController) stateLocked() models.AnimationState {
	return models.AnimationState{
		Status:    a.status,
		Direction: a.direction.String(),
		Index:     a.index,
		Window:    a.cfg.Window,
		Step:      a.cfg.Step,
		Playing:   a.status != models.AnimationIdle,
	}
}

func playingStatus(dir models.Direction) models.AnimationStatus {
	if dir == models.DirectionReverse {
		return models.AnimationPlayingReverse
	}
	return models.AnimationPlayingForward
}
