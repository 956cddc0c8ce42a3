package ruleset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/alertdash/internal/alerting/database"
	"github.com/qiniu/alertdash/internal/alerting/model"
)

const ruleColumns = `id, user_id, metric_name, threshold, comparator, message, cooldown_seconds, last_triggered_at, created_at, updated_at`

// PgStore is a PostgreSQL-backed Store. Q may be the database or an open transaction.
type PgStore struct {
	Q database.Querier
}

func NewPgStore(q database.Querier) *PgStore { return &PgStore{Q: q} }

func (s *PgStore) FindByUserAndMetricName(ctx context.Context, userID, name string) ([]model.AlertRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM alerts
	WHERE user_id = $1 AND lower(metric_name) = lower($2)
	ORDER BY created_at ASC, id ASC`
	rows, err := s.Q.QueryContext(ctx, q, userID, name)
	if err != nil {
		return nil, model.Storage("find rules", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

// UpdateTriggerState keeps the cooldown gate inside the UPDATE: a writer blocked
// on the row lock re-evaluates the WHERE clause against the committed row.
func (s *PgStore) UpdateTriggerState(ctx context.Context, userID, ruleID string, now, at time.Time) (*model.AlertRule, error) {
	q := `UPDATE alerts SET last_triggered_at = $4, updated_at = $4
	WHERE id = $1 AND user_id = $2
	AND (cooldown_seconds = 0 OR last_triggered_at IS NULL
		OR last_triggered_at <= $3::timestamptz - cooldown_seconds * interval '1 second')
	RETURNING ` + ruleColumns
	r, err := scanRule(s.Q.QueryRowContext(ctx, q, ruleID, userID, now.UTC(), at.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrStaleRule
	}
	if err != nil {
		return nil, model.Storage("update trigger state", err)
	}
	return r, nil
}

func (s *PgStore) Create(ctx context.Context, r *model.AlertRule) error {
	const q = `
	INSERT INTO alerts(id, user_id, metric_name, threshold, comparator, message, cooldown_seconds, last_triggered_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.Q.ExecContext(ctx, q, r.ID, r.UserID, r.MetricName, r.Threshold, string(r.Comparator),
		r.Message, r.CooldownSeconds, database.NullTime(r.LastTriggeredAt), r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err != nil {
		return model.Storage("create rule", err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, userID, id string) (*model.AlertRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM alerts WHERE id = $1 AND user_id = $2`
	r, err := scanRule(s.Q.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) || database.IsInvalidText(err) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, model.Storage("get rule", err)
	}
	return r, nil
}

func (s *PgStore) List(ctx context.Context, userID string) ([]model.AlertRule, error) {
	q := `SELECT ` + ruleColumns + ` FROM alerts WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	rows, err := s.Q.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, model.Storage("list rules", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (s *PgStore) Update(ctx context.Context, userID, id string, patch model.RulePatch, at time.Time) (*model.AlertRule, error) {
	sets := []string{"updated_at = $3"}
	args := []any{id, userID, at.UTC()}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.MetricName != nil {
		add("metric_name", *patch.MetricName)
	}
	if patch.Threshold != nil {
		add("threshold", *patch.Threshold)
	}
	if patch.Comparator != nil {
		add("comparator", string(*patch.Comparator))
	}
	if patch.Message != nil {
		add("message", *patch.Message)
	}
	if patch.CooldownSeconds != nil {
		add("cooldown_seconds", *patch.CooldownSeconds)
	}

	q := `UPDATE alerts SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND user_id = $2 RETURNING ` + ruleColumns
	r, err := scanRule(s.Q.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) || database.IsInvalidText(err) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, model.Storage("update rule", err)
	}
	return r, nil
}

// Delete removes the rule if it exists. Deleting a missing rule is not an error.
func (s *PgStore) Delete(ctx context.Context, userID, id string) error {
	const q = `DELETE FROM alerts WHERE id = $1 AND user_id = $2`
	_, err := s.Q.ExecContext(ctx, q, id, userID)
	if err != nil && !database.IsInvalidText(err) {
		return model.Storage("delete rule", err)
	}
	return nil
}

func (s *PgStore) ListMetricNames(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT DISTINCT metric_name FROM alerts WHERE user_id = $1`
	rows, err := s.Q.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, model.Storage("list rule metric names", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, model.Storage("scan rule metric name", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Storage("list rule metric names", err)
	}
	return names, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.AlertRule, error) {
	var (
		r          model.AlertRule
		comparator string
		last       pgtype.Timestamptz
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.MetricName, &r.Threshold, &comparator, &r.Message,
		&r.CooldownSeconds, &last, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Comparator = model.Comparator(comparator)
	if !r.Comparator.IsValid() {
		log.Warn().Str("rule_id", r.ID).Str("comparator", comparator).Msg("alert rule has unknown comparator; it will never match")
	}
	r.LastTriggeredAt = database.TimePtr(last)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func scanRules(rows *sql.Rows) ([]model.AlertRule, error) {
	res := []model.AlertRule{}
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, model.Storage("scan rule", err)
		}
		res = append(res, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Storage("iterate rules", err)
	}
	return res, nil
}
