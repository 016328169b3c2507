package service

import "time"

// LogFilter selects activity log entries by time range, type and viewer.
type LogFilter struct {
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Type   string    // "", "ANIMATION_START", "ANIMATION_STOP", "REGION_CHANGE", "QUERY_ERROR"
	UserID int       // 0 means every viewer and system events
}
