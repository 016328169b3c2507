package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"street_trees/internal/models"
	"street_trees/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidUserID    = errors.New("invalid user id")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeEventType trims spaces and uppercases the event type filter.
func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter turns a LogFilter into a repository query.
func normalizeAndValidateFilter(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:   normalizeToUTC(f.From),
		To:     normalizeToUTC(f.To),
		Type:   normalizeEventType(f.Type),
		UserID: f.UserID,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, errInvalidTimeRange
	}
	if q.UserID < 0 {
		return repository.EventQuery{}, errInvalidUserID
	}
	return q, nil
}

// Record appends one activity entry.
func (s *EventLogService) Record(ctx context.Context, e models.ExplorerEvent) error {
	return s.eventRepo.Append(ctx, e)
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ExplorerEvent, error) {
	q, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}
