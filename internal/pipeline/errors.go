package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled marks a result superseded by a newer generation. It is never
// shown to the user.
var ErrCancelled = errors.New("query superseded by a newer generation")

// ErrCategoryLocked is returned when a category is picked while a sweep plays.
var ErrCategoryLocked = errors.New("category selection is disabled while the animation plays")

// InvalidRangeError rejects a numeric range with min > max.
type InvalidRangeError struct {
	Min, Max float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: min %.2f is greater than max %.2f", e.Min, e.Max)
}

// QueryError wraps a backend or transport failure of a named query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// IsCancelled reports whether err only means "superseded".
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// ErrAnimationPlaying is returned when the sweep is reset while it plays.
var ErrAnimationPlaying = errors.New("animation is playing")

// ErrNoSearchCenter is returned when the search distance changes before a
// search location was set.
var ErrNoSearchCenter = errors.New("no search location set")

// ErrInvalidRadius rejects a non-positive search distance.
var ErrInvalidRadius = errors.New("search distance must be positive")
