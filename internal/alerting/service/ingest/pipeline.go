// Package ingest records metric samples and evaluates the caller's alert rules
// against each one.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/alertdash/internal/alerting/metrics"
	"github.com/qiniu/alertdash/internal/alerting/model"
	"github.com/qiniu/alertdash/internal/alerting/service/notify"
)

// Request is the decoded body of an ingest call.
type Request struct {
	MetricName model.Text   `json:"metric_name"`
	Value      model.Number `json:"value"`
	Timestamp  model.Text   `json:"timestamp"`
}

// RuleFinder yields the candidate rules for a sample.
type RuleFinder interface {
	FindByUserAndMetricName(ctx context.Context, userID, name string) ([]model.AlertRule, error)
}

// NameSink is told about every ingested metric name.
type NameSink interface {
	SampleNameAdded(ctx context.Context, userID, name string)
}

type Deps struct {
	Samples  SampleStore
	Rules    RuleFinder
	Recorder Recorder
	Notifier notify.Notifier // optional
	Names    NameSink        // optional
}

type Pipeline struct {
	samples  SampleStore
	rules    RuleFinder
	recorder Recorder
	notifier notify.Notifier
	names    NameSink
	nowFn    func() time.Time
}

func NewPipeline(d Deps) *Pipeline {
	p := &Pipeline{
		samples:  d.Samples,
		rules:    d.Rules,
		recorder: d.Recorder,
		notifier: d.Notifier,
		names:    d.Names,
		nowFn:    time.Now,
	}
	if p.notifier == nil {
		p.notifier = notify.Noop{}
	}
	return p
}

type sample struct {
	name  string
	value float64
	at    time.Time
}

func (p *Pipeline) validate(req Request) (sample, error) {
	var s sample
	s.name = req.MetricName.Trimmed()
	if s.name == "" {
		return s, model.Invalid("metric_name", "metric_name is required")
	}
	if !req.Value.Valid {
		return s, model.Invalid("value", "value must be a number")
	}
	s.value = req.Value.Value

	// an empty string means "now", anything else must parse
	ts := req.Timestamp
	if ts.Present && (!ts.IsString || ts.Trimmed() != "") {
		at, ok := model.ParseTimestamp(ts.Value)
		if !ok || !ts.IsString {
			return s, model.Invalid("timestamp", "timestamp must be a valid ISO timestamp")
		}
		s.at = at
	} else {
		s.at = p.nowFn().UTC()
	}
	return s, nil
}

// Ingest persists one sample and fires every matching rule not in cooldown.
// A storage failure stops the loop; firings already recorded stay committed.
func (p *Pipeline) Ingest(ctx context.Context, userID string, req Request) (*model.IngestSummary, error) {
	s, err := p.validate(req)
	if err != nil {
		metrics.SamplesIngested.WithLabelValues("rejected").Inc()
		return nil, err
	}

	now := p.nowFn().UTC()
	err = p.samples.Insert(ctx, &model.MetricSample{
		ID:         uuid.NewString(),
		UserID:     userID,
		MetricName: s.name,
		Value:      s.value,
		RecordedAt: s.at,
		CreatedAt:  now,
	})
	if err != nil {
		metrics.SamplesIngested.WithLabelValues("failed").Inc()
		return nil, model.Storage("insert metric sample", err)
	}
	if p.names != nil {
		p.names.SampleNameAdded(ctx, userID, s.name)
	}

	rules, err := p.rules.FindByUserAndMetricName(ctx, userID, s.name)
	if err != nil {
		metrics.SamplesIngested.WithLabelValues("failed").Inc()
		return nil, model.Storage("find rules", err)
	}

	summary := &model.IngestSummary{Message: "Metric processed", TriggeredAlerts: []model.TriggeredAlert{}}
	for _, rule := range rules {
		summary.Evaluated++

		if IsCooldownActive(rule.LastTriggeredAt, rule.CooldownSeconds, now) {
			summary.CooldownSkipped++
			metrics.RulesEvaluated.WithLabelValues("cooldown").Inc()
			continue
		}
		if !rule.Comparator.Evaluate(s.value, rule.Threshold) {
			metrics.RulesEvaluated.WithLabelValues("quiet").Inc()
			continue
		}

		event := model.AlertEvent{
			ID:          uuid.NewString(),
			UserID:      userID,
			AlertID:     rule.ID,
			MetricName:  s.name,
			MetricValue: s.value,
			Timestamp:   s.at,
			Message:     rule.Message,
		}
		err := p.recorder.RecordFiring(ctx, rule, event, now)
		if errors.Is(err, model.ErrStaleRule) {
			summary.CooldownSkipped++
			metrics.RulesEvaluated.WithLabelValues("stale").Inc()
			log.Debug().Str("rule_id", rule.ID).Msg("alert rule entered cooldown concurrently, skipping")
			continue
		}
		if err != nil {
			metrics.SamplesIngested.WithLabelValues("failed").Inc()
			log.Error().Err(err).Str("user_id", userID).Str("rule_id", rule.ID).
				Int("triggered_before_failure", summary.Triggered).Msg("record alert firing")
			return nil, model.Storage("record firing", err)
		}

		summary.Triggered++
		summary.TriggeredAlerts = append(summary.TriggeredAlerts, model.TriggeredAlert{
			ID:         rule.ID,
			MetricName: rule.MetricName,
			Message:    rule.Message,
		})
		metrics.RulesEvaluated.WithLabelValues("triggered").Inc()
		log.Info().Str("user_id", userID).Str("rule_id", rule.ID).Str("metric_name", s.name).
			Float64("value", s.value).Str("comparator", rule.Comparator.String()).
			Float64("threshold", rule.Threshold).Msg("alert fired")
		p.notifier.Notify(ctx, event)
	}

	metrics.SamplesIngested.WithLabelValues("accepted").Inc()
	return summary, nil
}
