package service

import (
	"context"
	"time"

	"street_trees/internal/logger"
	"street_trees/internal/models"
	"street_trees/internal/pipeline"
	"street_trees/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	Viewer(userID int) (models.User, error)
}

// Explorer is the filter pipeline: user input in, summaries and bins out.
type Explorer interface {
	Start()
	Close()

	Filters() models.FilterSnapshot
	SelectCategory(name string) error
	ClearCategory() error
	ChangeNumericRange(min, max float64) error
	DrawRegion(region models.Polygon) error
	DrawRegionAround(center models.Point, radiusKm float64) error
	SetSearchDistance(radiusKm float64) error
	SearchDistance() float64
	ClearRegion() error

	Summary() models.SummaryRecord
	Histogram() []models.HistogramBin
	TopSpecies(ctx context.Context) ([]models.CategoryCount, error)

	Animation() models.AnimationState
	Play(dir models.Direction)
	Stop()
	ResetAnimation() error

	Subscribe(topic string, fn pipeline.Handler) func()
}

// ViewState exposes what the map and widgets currently show.
type ViewState interface {
	Current() models.ViewState
}

// EventLog exposes the append-only activity log.
type EventLog interface {
	Record(ctx context.Context, e models.ExplorerEvent) error
	List(ctx context.Context, f LogFilter) ([]models.ExplorerEvent, error)
}

// Activity records pipeline notifications until its context ends.
// Attribute tags the entries a viewer command causes with that viewer.
type Activity interface {
	Run(ctx context.Context)
	Attribute(userID int, cmd func() error) error
}

var _ Explorer = (*pipeline.Pipeline)(nil)

type Service struct {
	Explorer
	ViewState
	EventLog
	Activity
	Authorization
}

// Options carries the settings the services need from config.
type Options struct {
	SigningKey string
	TokenTTL   time.Duration
	Pipeline   pipeline.Config
}

// NewService wires the repository layer into the concrete services.
func NewService(repos *repository.Repository, opts Options, log *logger.Logger) (*Service, error) {
	view := NewViewService()
	explorer, err := pipeline.New(repos.Trees, view, view, opts.Pipeline, log)
	if err != nil {
		return nil, err
	}
	view.OnChange(func(st models.ViewState) {
		explorer.Bus().Emit(pipeline.TopicView, st)
	})

	events := NewEventLogService(repos.EventRepo)
	activity := NewActivityRecorder(events, log)
	activity.Attach(explorer)

	return &Service{
		Explorer:      explorer,
		ViewState:     view,
		EventLog:      events,
		Activity:      activity,
		Authorization: NewAuthService(repos.Auth, opts.SigningKey, opts.TokenTTL),
	}, nil
}
