package repository

import (
	"context"
	"database/sql"
	"time"

	"street_trees/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
	GetByID(id int) (*models.User, error)
}

// TreeRepo is the tree dataset store.
type TreeRepo interface {
	Query(ctx context.Context, p models.Predicate, spec models.AggregationSpec) (models.QueryResult, error)
	QueryHistogram(ctx context.Context, p models.Predicate, field string, binCount int, min, max float64) ([]models.HistogramBin, error)
	Count(ctx context.Context) (int, error)
	InsertBatch(ctx context.Context, trees []models.TreeFeature) error
}

// EventQuery narrows an event listing. Zero fields match everything.
type EventQuery struct {
	From   time.Time
	To     time.Time
	Type   string
	UserID int
}

type EventRepo interface {
	Append(ctx context.Context, e models.ExplorerEvent) error
	List(ctx context.Context, q EventQuery) ([]models.ExplorerEvent, error)
}

type Repository struct {
	Trees     TreeRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Trees:     NewTreeSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}
