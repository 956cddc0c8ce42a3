// Package history stores fired alert events and serves them newest first with
// timestamp cursors.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/qiniu/alertdash/internal/alerting/database"
	"github.com/qiniu/alertdash/internal/alerting/model"
)

// Store persists alert events.
type Store interface {
	Insert(ctx context.Context, e *model.AlertEvent) error
	// ListPage returns up to limit events older than cursor (all events when
	// cursor is nil), newest first. limit outside 1..MaxLimit means DefaultLimit.
	ListPage(ctx context.Context, userID string, f model.EventFilter, cursor *time.Time, limit int) (*model.EventPage, error)
}

// PgStore is a PostgreSQL-backed Store. Q may be the database or an open transaction.
type PgStore struct {
	Q database.Querier
}

func NewPgStore(q database.Querier) *PgStore { return &PgStore{Q: q} }

func (s *PgStore) Insert(ctx context.Context, e *model.AlertEvent) error {
	const q = `
	INSERT INTO alert_events(id, user_id, alert_id, metric_name, metric_value, timestamp, alert_message)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.Q.ExecContext(ctx, q, e.ID, e.UserID, e.AlertID, e.MetricName, e.MetricValue, e.Timestamp.UTC(), e.Message)
	if err != nil {
		return model.Storage("insert alert event", err)
	}
	return nil
}

func (s *PgStore) ListPage(ctx context.Context, userID string, f model.EventFilter, cursor *time.Time, limit int) (*model.EventPage, error) {
	limit = NormalizeLimit(limit)

	where := []string{"user_id = $1"}
	args := []any{userID}
	if f.MetricName != "" {
		args = append(args, "%"+EscapeLike(f.MetricName)+"%")
		where = append(where, fmt.Sprintf(`metric_name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if f.AlertID != "" {
		// compare as text so a malformed id filters everything out instead of failing
		args = append(args, f.AlertID)
		where = append(where, fmt.Sprintf("alert_id::text = lower($%d)", len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.UTC())
		where = append(where, fmt.Sprintf("timestamp < $%d", len(args)))
	}
	args = append(args, limit+1)

	q := `SELECT id, user_id, alert_id, metric_name, metric_value, timestamp, alert_message
	FROM alert_events
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY timestamp DESC, id DESC
	LIMIT $` + fmt.Sprint(len(args))

	rows, err := s.Q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, model.Storage("list alert events", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return BuildPage(events, limit), nil
}

func scanEvents(rows *sql.Rows) ([]model.AlertEvent, error) {
	var events []model.AlertEvent
	for rows.Next() {
		var e model.AlertEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.AlertID, &e.MetricName, &e.MetricValue, &e.Timestamp, &e.Message); err != nil {
			return nil, model.Storage("scan alert event", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Storage("iterate alert events", err)
	}
	return events, nil
}
