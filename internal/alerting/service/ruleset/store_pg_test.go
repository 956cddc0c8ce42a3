package ruleset

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiniu/alertdash/internal/alerting/database"
	"github.com/qiniu/alertdash/internal/alerting/model"
)

func openTestDB(t *testing.T) *database.Database {
	t.Helper()
	dsn := os.Getenv("ALERTDASH_TEST_DSN")
	if dsn == "" {
		t.Skip("ALERTDASH_TEST_DSN not set, skipping test")
	}
	db, err := database.New(os.Getenv("ALERTDASH_TEST_DRIVER"), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestPgStore_RuleLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := NewPgStore(db)
	user := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	r := &model.AlertRule{
		ID: uuid.NewString(), UserID: user, MetricName: "CPU.Usage", Threshold: 90,
		Comparator: model.ComparatorGT, Message: "hot", CooldownSeconds: 60,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Create(ctx, r))

	found, err := s.FindByUserAndMetricName(ctx, user, "cpu.usage")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Nil(t, found[0].LastTriggeredAt)

	found, err = s.FindByUserAndMetricName(ctx, user, "cpu")
	require.NoError(t, err)
	assert.Empty(t, found, "matching is equality, not substring")

	fired := now.Add(time.Second)
	updated, err := s.UpdateTriggerState(ctx, user, r.ID, fired, fired)
	require.NoError(t, err)
	require.NotNil(t, updated.LastTriggeredAt)
	assert.True(t, updated.LastTriggeredAt.Equal(fired))

	// inside the 60s window the write is refused
	_, err = s.UpdateTriggerState(ctx, user, r.ID, fired.Add(59*time.Second), fired.Add(59*time.Second))
	assert.ErrorIs(t, err, model.ErrStaleRule)

	_, err = s.UpdateTriggerState(ctx, uuid.NewString(), r.ID, fired.Add(time.Hour), fired.Add(time.Hour))
	assert.ErrorIs(t, err, model.ErrStaleRule)

	// exactly at the boundary the cooldown has elapsed
	again := fired.Add(60 * time.Second)
	updated, err = s.UpdateTriggerState(ctx, user, r.ID, again, again)
	require.NoError(t, err)
	assert.True(t, updated.LastTriggeredAt.Equal(again))

	th := 50.0
	got, err := s.Update(ctx, user, r.ID, model.RulePatch{Threshold: &th}, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.Threshold)

	_, err = s.Get(ctx, user, "not-a-uuid")
	assert.ErrorIs(t, err, model.ErrNotFound)

	names, err := s.ListMetricNames(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"CPU.Usage"}, names)

	require.NoError(t, s.Delete(ctx, user, r.ID))
	_, err = s.Get(ctx, user, r.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
