package history

import (
	"strconv"
	"strings"

	"github.com/qiniu/alertdash/internal/alerting/model"
)

const (
	DefaultLimit = 4
	MaxLimit     = 500
)

// NormalizeLimit maps out-of-range page sizes to DefaultLimit.
func NormalizeLimit(limit int) int {
	if limit < 1 || limit > MaxLimit {
		return DefaultLimit
	}
	return limit
}

// ParseLimit reads a limit query parameter. Anything that is not an integer
// in 1..MaxLimit yields DefaultLimit.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultLimit
	}
	return NormalizeLimit(n)
}

// BuildPage trims rows fetched with limit+1 to limit and sets the cursor when
// more rows exist.
func BuildPage(rows []model.AlertEvent, limit int) *model.EventPage {
	page := &model.EventPage{Events: rows}
	if len(rows) > limit {
		page.Events = rows[:limit]
		page.HasMore = true
	}
	if page.Events == nil {
		page.Events = []model.AlertEvent{}
	}
	if page.HasMore && len(page.Events) > 0 {
		c := model.FormatTimestamp(page.Events[len(page.Events)-1].Timestamp)
		page.NextCursor = &c
	}
	return page
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike quotes LIKE wildcards so s matches literally.
func EscapeLike(s string) string { return likeEscaper.Replace(s) }
