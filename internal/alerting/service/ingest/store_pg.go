package ingest

import (
	"context"
	"time"

	"github.com/qiniu/alertdash/internal/alerting/database"
	"github.com/qiniu/alertdash/internal/alerting/model"
	"github.com/qiniu/alertdash/internal/alerting/service/history"
	"github.com/qiniu/alertdash/internal/alerting/service/ruleset"
)

// SampleStore is the append-only log of metric samples.
type SampleStore interface {
	Insert(ctx context.Context, s *model.MetricSample) error
}

// PgSampleStore writes samples to the metrics table and also serves the
// sample side of the metric name directory.
type PgSampleStore struct {
	Q database.Querier
}

func NewPgSampleStore(q database.Querier) *PgSampleStore { return &PgSampleStore{Q: q} }

func (s *PgSampleStore) Insert(ctx context.Context, m *model.MetricSample) error {
	const q = `
	INSERT INTO metrics(id, user_id, metric_name, value, recorded_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.Q.ExecContext(ctx, q, m.ID, m.UserID, m.MetricName, m.Value, m.RecordedAt.UTC(), m.CreatedAt.UTC())
	if err != nil {
		return model.Storage("insert metric sample", err)
	}
	return nil
}

// SampleMetricNames returns the distinct names among the first scanLimit sample
// rows and the number of rows scanned.
func (s *PgSampleStore) SampleMetricNames(ctx context.Context, userID string, scanLimit int) ([]string, int, error) {
	const q = `
	SELECT metric_name, count(*) FROM (
		SELECT metric_name FROM metrics WHERE user_id = $1 LIMIT $2
	) s
	GROUP BY metric_name
	`
	rows, err := s.Q.QueryContext(ctx, q, userID, scanLimit)
	if err != nil {
		return nil, 0, model.Storage("list sample metric names", err)
	}
	defer rows.Close()
	var (
		names   []string
		scanned int
	)
	for rows.Next() {
		var (
			n     string
			count int
		)
		if err := rows.Scan(&n, &count); err != nil {
			return nil, 0, model.Storage("scan sample metric name", err)
		}
		names = append(names, n)
		scanned += count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, model.Storage("list sample metric names", err)
	}
	return names, scanned, nil
}

// Recorder persists one firing: the rule's trigger state and the event.
type Recorder interface {
	// RecordFiring advances rule's last_triggered_at to e.Timestamp and inserts e.
	// The cooldown gate is re-applied at now against the stored rule; when it
	// suppresses (a concurrent firing won) model.ErrStaleRule is returned and
	// nothing is written.
	RecordFiring(ctx context.Context, rule model.AlertRule, e model.AlertEvent, now time.Time) error
}

// PgRecorder records each firing in its own transaction.
type PgRecorder struct {
	DB *database.Database
}

func NewPgRecorder(db *database.Database) *PgRecorder { return &PgRecorder{DB: db} }

func (r *PgRecorder) RecordFiring(ctx context.Context, rule model.AlertRule, e model.AlertEvent, now time.Time) error {
	err := r.DB.WithTx(ctx, func(q database.Querier) error {
		if _, err := ruleset.NewPgStore(q).UpdateTriggerState(ctx, rule.UserID, rule.ID, now, e.Timestamp); err != nil {
			return err
		}
		return history.NewPgStore(q).Insert(ctx, &e)
	})
	return model.Storage("record firing", err)
}
