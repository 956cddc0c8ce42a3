package ingest

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiniu/alertdash/internal/alerting/database"
	"github.com/qiniu/alertdash/internal/alerting/model"
	"github.com/qiniu/alertdash/internal/alerting/service/history"
	"github.com/qiniu/alertdash/internal/alerting/service/ruleset"
)

// Requires a reachable PostgreSQL; set ALERTDASH_TEST_DSN to run.
func TestPgRecorder_ConcurrentFirings(t *testing.T) {
	dsn := os.Getenv("ALERTDASH_TEST_DSN")
	if dsn == "" {
		t.Skip("ALERTDASH_TEST_DSN not set, skipping test")
	}
	db, err := database.New(os.Getenv("ALERTDASH_TEST_DRIVER"), dsn)
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	const writers = 4
	tests := []struct {
		name     string
		cooldown int64
		wantOK   int
	}{
		{"cooldown commits once", 60, 1},
		{"zero cooldown commits all", 0, writers},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := uuid.NewString()
			now := time.Now().UTC().Truncate(time.Microsecond)
			rule := model.AlertRule{
				ID: uuid.NewString(), UserID: userID, MetricName: "cpu", Threshold: 1,
				Comparator: model.ComparatorGT, Message: "m", CooldownSeconds: tt.cooldown, CreatedAt: now, UpdatedAt: now,
			}
			require.NoError(t, ruleset.NewPgStore(db).Create(ctx, &rule))

			rec := NewPgRecorder(db)
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				errs []error
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := rec.RecordFiring(ctx, rule, model.AlertEvent{
						ID: uuid.NewString(), UserID: userID, AlertID: rule.ID, MetricName: "cpu",
						MetricValue: float64(i), Timestamp: now.Add(time.Duration(i) * time.Millisecond), Message: "m",
					}, now.Add(10*time.Millisecond))
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}(i)
			}
			wg.Wait()

			ok, stale := 0, 0
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, model.ErrStaleRule):
					stale++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, writers-tt.wantOK, stale)

			page, err := history.NewPgStore(db).ListPage(ctx, userID, model.EventFilter{AlertID: rule.ID}, nil, 100)
			require.NoError(t, err)
			assert.Len(t, page.Events, tt.wantOK)

			names, scanned, err := NewPgSampleStore(db).SampleMetricNames(ctx, userID, 10)
			require.NoError(t, err)
			assert.Empty(t, names)
			assert.Zero(t, scanned)
		})
	}
}
