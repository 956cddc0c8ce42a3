package ruleset

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/alertdash/internal/alerting/model"
)

// Manager validates rule requests and coordinates the store with name observers.
type Manager struct {
	store    Store
	observer NameObserver
	nowFn    func() time.Time
}

func NewManager(store Store, observer NameObserver) *Manager {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Manager{store: store, observer: observer, nowFn: time.Now}
}

func (m *Manager) Create(ctx context.Context, userID string, req RuleRequest) (*model.AlertRule, error) {
	r, err := ValidateCreate(req)
	if err != nil {
		return nil, err
	}
	now := m.nowFn().UTC()
	r.ID = uuid.NewString()
	r.UserID = userID
	r.CreatedAt = now
	r.UpdatedAt = now
	if err := m.store.Create(ctx, &r); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("rule_id", r.ID).Str("metric_name", r.MetricName).
		Str("comparator", r.Comparator.String()).Float64("threshold", r.Threshold).Msg("alert rule created")
	m.observer.NameAdded(ctx, userID, r.MetricName)
	return &r, nil
}

func (m *Manager) Get(ctx context.Context, userID, id string) (*model.AlertRule, error) {
	if !validID(id) {
		return nil, model.ErrNotFound
	}
	return m.store.Get(ctx, userID, id)
}

func (m *Manager) List(ctx context.Context, userID string) ([]model.AlertRule, error) {
	rules, err := m.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []model.AlertRule{}
	}
	return rules, nil
}

func (m *Manager) Update(ctx context.Context, userID, id string, req RuleRequest) (*model.AlertRule, error) {
	patch, err := ValidatePatch(req)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, model.ErrNotFound
	}
	r, err := m.store.Update(ctx, userID, id, patch, m.nowFn().UTC())
	if err != nil {
		return nil, err
	}
	log.Info().Str("user_id", userID).Str("rule_id", id).Bool("empty_patch", patch.Empty()).Msg("alert rule updated")
	if patch.MetricName != nil {
		m.observer.NamesChanged(ctx, userID)
	}
	return r, nil
}

func (m *Manager) Delete(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return nil
	}
	if err := m.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	log.Info().Str("user_id", userID).Str("rule_id", id).Msg("alert rule deleted")
	m.observer.NamesChanged(ctx, userID)
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
