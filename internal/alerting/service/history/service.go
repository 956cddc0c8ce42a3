package history

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qiniu/alertdash/internal/alerting/model"
)

// Query holds the raw listing parameters of an events request.
type Query struct {
	MetricName string
	AlertID    string
	Limit      string
	Cursor     string
}

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

// List validates q and returns one page of the user's events.
func (s *Service) List(ctx context.Context, userID string, q Query) (*model.EventPage, error) {
	var cursor *time.Time
	if raw := strings.TrimSpace(q.Cursor); raw != "" {
		t, ok := model.ParseTimestamp(raw)
		if !ok {
			return nil, model.Invalid("cursor", "cursor must be a valid ISO timestamp")
		}
		cursor = &t
	}
	f := model.EventFilter{
		MetricName: strings.TrimSpace(q.MetricName),
		AlertID:    strings.TrimSpace(q.AlertID),
	}
	// alert ids are stored in canonical lowercase form
	if id, err := uuid.Parse(f.AlertID); err == nil {
		f.AlertID = id.String()
	}
	return s.store.ListPage(ctx, userID, f, cursor, ParseLimit(q.Limit))
}
