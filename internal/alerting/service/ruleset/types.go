package ruleset

import (
	"context"
	"time"

	"github.com/qiniu/alertdash/internal/alerting/model"
)

// Store persists alert rules. Every operation is scoped by user id; a rule is
// never read or written across user boundaries.
type Store interface {
	// FindByUserAndMetricName returns the user's rules whose metric name equals
	// name ignoring case.
	FindByUserAndMetricName(ctx context.Context, userID, name string) ([]model.AlertRule, error)
	// UpdateTriggerState sets last_triggered_at and updated_at to at, but only if
	// the stored rule is out of cooldown at now. The check runs against the row as
	// it is when written, so a concurrent firing is seen. A suppressed or missing
	// rule returns model.ErrStaleRule.
	UpdateTriggerState(ctx context.Context, userID, ruleID string, now, at time.Time) (*model.AlertRule, error)

	Create(ctx context.Context, r *model.AlertRule) error
	Get(ctx context.Context, userID, id string) (*model.AlertRule, error)
	List(ctx context.Context, userID string) ([]model.AlertRule, error)
	Update(ctx context.Context, userID, id string, patch model.RulePatch, at time.Time) (*model.AlertRule, error)
	Delete(ctx context.Context, userID, id string) error
	ListMetricNames(ctx context.Context, userID string) ([]string, error)
}

// NameObserver follows changes to the set of metric names referenced by rules.
// Implementations must not fail the calling operation.
type NameObserver interface {
	NameAdded(ctx context.Context, userID, name string)
	NamesChanged(ctx context.Context, userID string)
}

// RuleRequest is the decoded body of a rule create or patch request.
type RuleRequest struct {
	MetricName      model.Text   `json:"metric_name"`
	Threshold       model.Number `json:"threshold"`
	Comparator      model.Text   `json:"comparator"`
	Message         model.Text   `json:"message"`
	CooldownSeconds model.Number `json:"cooldown_seconds"`
}

type noopObserver struct{}

func (noopObserver) NameAdded(context.Context, string, string) {}
func (noopObserver) NamesChanged(context.Context, string)      {}
