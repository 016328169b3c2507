package models

import "time"

// Activity log event types.
const (
	EventAnimationStart = "ANIMATION_START"
	EventAnimationStop  = "ANIMATION_STOP"
	EventRegionChange   = "REGION_CHANGE"
	EventQueryError     = "QUERY_ERROR"
)

// ExplorerEvent is a single activity log entry.
type ExplorerEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // ANIMATION_START | ANIMATION_STOP | REGION_CHANGE | QUERY_ERROR
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`

	// Viewer that issued the command; zero for system events.
	UserID   int    `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}
