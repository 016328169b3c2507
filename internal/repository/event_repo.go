package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"street_trees/internal/models"
)

const (
	insertEventSQL = `INSERT INTO explorer_events (id, occurred_at, type, message, meta, user_id) VALUES (?, ?, ?, ?, ?, ?)`
	selectEventSQL = `SELECT e.id, e.occurred_at, e.type, e.message, e.meta, e.user_id, u.username ` +
		`FROM explorer_events e LEFT JOIN users u ON u.id = e.user_id`

	// SQLite TIMESTAMP text layout
	eventTimeLayout = "2006-01-02 15:04:05"
)

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

// Append inserts a new event. Missing EventID and OccurredAt are filled in.
func (r *EventSQLite) Append(ctx context.Context, e models.ExplorerEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	// marshal metadata if present
	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	// system events carry no viewer
	var userID sql.NullInt64
	if e.UserID > 0 {
		userID = sql.NullInt64{Int64: int64(e.UserID), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, insertEventSQL,
		e.EventID,
		e.OccurredAt.Format(eventTimeLayout),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Description,
		metaPtr,
		userID,
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.EventID, err)
	}
	return nil
}

// List returns events matching q, oldest first. Time bounds are inclusive.
func (r *EventSQLite) List(ctx context.Context, q EventQuery) ([]models.ExplorerEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !q.From.IsZero() {
		conds = append(conds, "e.occurred_at >= ?")
		args = append(args, q.From.UTC().Format(eventTimeLayout))
	}
	if !q.To.IsZero() {
		conds = append(conds, "e.occurred_at <= ?")
		args = append(args, q.To.UTC().Format(eventTimeLayout))
	}
	if typ := strings.ToUpper(strings.TrimSpace(q.Type)); typ != "" {
		conds = append(conds, "e.type = ?")
		args = append(args, typ)
	}
	if q.UserID > 0 {
		conds = append(conds, "e.user_id = ?")
		args = append(args, q.UserID)
	}

	stmt := selectEventSQL
	if len(conds) > 0 {
		stmt += " WHERE " + strings.Join(conds, " AND ")
	}
	stmt += " ORDER BY e.occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]models.ExplorerEvent, 0, 64)
	for rows.Next() {
		var (
			ev       models.ExplorerEvent
			metaStr  sql.NullString
			userID   sql.NullInt64
			username sql.NullString
		)
		if err := rows.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &metaStr, &userID, &username); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		ev.UserID = int(userID.Int64)
		ev.Username = username.String

		if metaStr.Valid && metaStr.String != "" {
			var v any
			if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
				ev.Metadata = v
			} else {
				ev.Metadata = metaStr.String
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
