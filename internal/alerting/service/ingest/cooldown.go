package ingest

import "time"

// IsCooldownActive reports whether a rule last fired at last is still
// suppressed at now. A nil last or a zero cooldown never suppresses.
func IsCooldownActive(last *time.Time, cooldownSeconds int64, now time.Time) bool {
	if last == nil || cooldownSeconds == 0 {
		return false
	}
	return now.Sub(*last) < time.Duration(cooldownSeconds)*time.Second
}
