package ruleset

import (
	"math"

	"github.com/qiniu/alertdash/internal/alerting/model"
)

// maxCooldownSeconds keeps cooldowns representable as a time.Duration.
const maxCooldownSeconds = math.MaxInt32

// ValidateCreate checks a create request and returns the rule fields it carries.
func ValidateCreate(req RuleRequest) (model.AlertRule, error) {
	var r model.AlertRule

	r.MetricName = req.MetricName.Trimmed()
	if r.MetricName == "" {
		return r, model.Invalid("metric_name", "metric_name is required")
	}
	if !req.Threshold.Valid {
		return r, model.Invalid("threshold", "threshold must be a number")
	}
	r.Threshold = req.Threshold.Value
	// non-string comparators decode to "" and are rejected here
	c, err := model.ParseComparator(req.Comparator.Value)
	if err != nil {
		return r, err
	}
	r.Comparator = c
	r.Message = req.Message.Trimmed()
	if r.Message == "" {
		return r, model.Invalid("message", "message is required")
	}
	if req.CooldownSeconds.Present {
		secs, err := cooldown(req.CooldownSeconds)
		if err != nil {
			return r, err
		}
		r.CooldownSeconds = secs
	}
	return r, nil
}

// ValidatePatch checks a partial update. Absent fields stay nil in the patch.
func ValidatePatch(req RuleRequest) (model.RulePatch, error) {
	var p model.RulePatch

	if req.MetricName.Present {
		v := req.MetricName.Trimmed()
		if v == "" {
			return p, model.Invalid("metric_name", "metric_name cannot be empty")
		}
		p.MetricName = &v
	}
	if req.Threshold.Present {
		if !req.Threshold.Valid {
			return p, model.Invalid("threshold", "threshold must be a number")
		}
		v := req.Threshold.Value
		p.Threshold = &v
	}
	if req.Comparator.Present {
		c, err := model.ParseComparator(req.Comparator.Value)
		if err != nil {
			return p, err
		}
		p.Comparator = &c
	}
	if req.Message.Present {
		v := req.Message.Trimmed()
		if v == "" {
			return p, model.Invalid("message", "message cannot be empty")
		}
		p.Message = &v
	}
	if req.CooldownSeconds.Present {
		secs, err := cooldown(req.CooldownSeconds)
		if err != nil {
			return p, err
		}
		p.CooldownSeconds = &secs
	}
	return p, nil
}

func cooldown(n model.Number) (int64, error) {
	if !n.Valid || n.Value < 0 {
		return 0, model.Invalid("cooldown_seconds", "cooldown_seconds must be 0 or a positive number")
	}
	if n.Value != math.Trunc(n.Value) {
		return 0, model.Invalid("cooldown_seconds", "cooldown_seconds must be a whole number of seconds")
	}
	if n.Value > maxCooldownSeconds {
		return 0, model.Invalid("cooldown_seconds", "cooldown_seconds is too large")
	}
	return int64(n.Value), nil
}
