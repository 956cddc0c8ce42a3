package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiniu/alertdash/internal/alerting/model"
	"github.com/qiniu/alertdash/internal/alerting/service/directory"
	"github.com/qiniu/alertdash/internal/alerting/service/history"
	"github.com/qiniu/alertdash/internal/alerting/service/ingest"
	"github.com/qiniu/alertdash/internal/alerting/service/ruleset"
	"github.com/qiniu/alertdash/internal/middleware"
)

const (
	alice = "0b6f1b8e-3c2a-4f6d-8e1a-6a1f0d2c3b4a"
	bob   = "7d9e2f1a-5b4c-4a3d-9e8f-1c2b3a4d5e6f"
)

// memDB backs every store the handlers reach.
type memDB struct {
	mu      sync.Mutex
	samples []model.MetricSample
	rules   map[string]model.AlertRule
	events  []model.AlertEvent
	failAll error
}

func newMemDB() *memDB { return &memDB{rules: map[string]model.AlertRule{}} }

func (m *memDB) Insert(ctx context.Context, s *model.MetricSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.samples = append(m.samples, *s)
	return nil
}

func (m *memDB) SampleMetricNames(ctx context.Context, userID string, scanLimit int) ([]string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.samples {
		if s.UserID == userID && len(out) < scanLimit {
			out = append(out, s.MetricName)
		}
	}
	return out, len(out), nil
}

func (m *memDB) FindByUserAndMetricName(ctx context.Context, userID, name string) ([]model.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AlertRule
	for _, r := range m.rules {
		if r.UserID == userID && strings.EqualFold(r.MetricName, name) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memDB) UpdateTriggerState(ctx context.Context, userID, ruleID string, now, at time.Time) (*model.AlertRule, error) {
	return nil, errors.New("not used")
}

func (m *memDB) RecordFiring(ctx context.Context, rule model.AlertRule, e model.AlertEvent, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[rule.ID]
	if !ok || ingest.IsCooldownActive(r.LastTriggeredAt, r.CooldownSeconds, now) {
		return model.ErrStaleRule
	}
	at := e.Timestamp
	r.LastTriggeredAt, r.UpdatedAt = &at, at
	m.rules[rule.ID] = r
	m.events = append(m.events, e)
	return nil
}

func (m *memDB) Create(ctx context.Context, r *model.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return m.failAll
	}
	m.rules[r.ID] = *r
	return nil
}

func (m *memDB) Get(ctx context.Context, userID, id string) (*model.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.UserID != userID {
		return nil, model.ErrNotFound
	}
	return &r, nil
}

func (m *memDB) List(ctx context.Context, userID string) ([]model.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []model.AlertRule
	for _, r := range m.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memDB) Update(ctx context.Context, userID, id string, p model.RulePatch, at time.Time) (*model.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.UserID != userID {
		return nil, model.ErrNotFound
	}
	if p.Threshold != nil {
		r.Threshold = *p.Threshold
	}
	if p.Message != nil {
		r.Message = *p.Message
	}
	r.UpdatedAt = at
	m.rules[id] = r
	return &r, nil
}

func (m *memDB) Delete(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[id]; ok && r.UserID == userID {
		delete(m.rules, id)
	}
	return nil
}

func (m *memDB) ListMetricNames(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.rules {
		if r.UserID == userID {
			out = append(out, r.MetricName)
		}
	}
	return out, nil
}

type eventStore struct{ db *memDB }

func (s eventStore) Insert(ctx context.Context, e *model.AlertEvent) error { return nil }

func (s eventStore) ListPage(ctx context.Context, userID string, f model.EventFilter, cursor *time.Time, limit int) (*model.EventPage, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	limit = history.NormalizeLimit(limit)
	var rows []model.AlertEvent
	for _, e := range s.db.events {
		if e.UserID != userID || (cursor != nil && !e.Timestamp.Before(*cursor)) {
			continue
		}
		if f.MetricName != "" && !strings.Contains(strings.ToLower(e.MetricName), strings.ToLower(f.MetricName)) {
			continue
		}
		if f.AlertID != "" && e.AlertID != f.AlertID {
			continue
		}
		rows = append(rows, e)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.After(rows[j].Timestamp) })
	if len(rows) > limit+1 {
		rows = rows[:limit+1]
	}
	return history.BuildPage(rows, limit), nil
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

func newTestRouter(db *memDB, pinger Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.RequestLogger())

	dir := directory.New(db, db, nil)
	NewApi(router, Deps{
		Ingest: ingest.NewPipeline(ingest.Deps{Samples: db, Rules: db, Recorder: db, Names: dir}),
		Rules:  ruleset.NewManager(db, dir),
		Events: history.NewService(eventStore{db: db}),
		Names:  dir,
		DB:     pinger,
		Auth:   middleware.HeaderResolver{Header: "X-User-ID"},
	})
	return router
}

func call(r http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestUnauthorized(t *testing.T) {
	r := newTestRouter(newMemDB(), nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/metrics"},
		{http.MethodGet, "/api/alerts"},
		{http.MethodGet, "/api/alert-events"},
		{http.MethodGet, "/api/metric-names"},
		{http.MethodDelete, "/api/alerts/x"},
	} {
		w := call(r, tc.method, tc.path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())
	}
}

func TestAlertLifecycleAndIngest(t *testing.T) {
	db := newMemDB()
	r := newTestRouter(db, nil)

	w := call(r, http.MethodPost, "/api/alerts", alice,
		`{"metric_name":" cpu ","threshold":"90","comparator":"GT","message":"CPU high","cooldown_seconds":60}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Alert model.AlertRule `json:"alert"`
	}](t, w).Alert
	assert.Equal(t, "cpu", created.MetricName)
	assert.Equal(t, 90.0, created.Threshold)
	assert.Nil(t, created.LastTriggeredAt)
	assert.Contains(t, w.Body.String(), `"last_triggered_at":null`)

	w = call(r, http.MethodPost, "/api/metrics", alice, `{"metric_name":"CPU","value":95,"timestamp":"2024-07-01T12:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Metric processed","evaluated":1,"triggered":1,"cooldown_skipped":0,
		"triggered_alerts":[{"id":"`+created.ID+`","metric_name":"cpu","message":"CPU high"}]}`, w.Body.String())

	w = call(r, http.MethodGet, "/api/alerts/"+created.ID, alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Alert model.AlertRule `json:"alert"`
	}](t, w).Alert
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, got.LastTriggeredAt.Equal(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)))

	w = call(r, http.MethodGet, "/api/alerts/"+created.ID, bob, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Alert not found"}`, w.Body.String())

	w = call(r, http.MethodPatch, "/api/alerts/"+created.ID, alice, `{"threshold":80}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"threshold":80`)

	w = call(r, http.MethodPatch, "/api/alerts/"+created.ID, alice, `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"message cannot be empty"}`, w.Body.String())

	w = call(r, http.MethodGet, "/api/alerts", alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[struct {
		Alerts []model.AlertRule `json:"alerts"`
	}](t, w).Alerts, 1)

	w = call(r, http.MethodGet, "/api/alerts", bob, "")
	assert.JSONEq(t, `{"alerts":[]}`, w.Body.String())

	w = call(r, http.MethodGet, "/api/metric-names?q=C", alice, "")
	assert.JSONEq(t, `{"names":["CPU","cpu"]}`, w.Body.String())

	w = call(r, http.MethodGet, "/api/alert-events?limit=abc", alice, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[model.EventPage](t, w)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "CPU", page.Events[0].MetricName)
	assert.False(t, page.HasMore)
	assert.Contains(t, w.Body.String(), `"nextCursor":null`)

	w = call(r, http.MethodDelete, "/api/alerts/"+created.ID, alice, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	w = call(r, http.MethodDelete, "/api/alerts/"+created.ID, alice, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(r, http.MethodGet, "/api/alerts/"+created.ID, alice, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = call(r, http.MethodPatch, "/api/alerts/not-a-uuid", alice, `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestZeroCooldownRuleFiresOnEveryMatch(t *testing.T) {
	db := newMemDB()
	r := newTestRouter(db, nil)

	w := call(r, http.MethodPost, "/api/alerts", alice,
		`{"metric_name":"disk","threshold":80,"comparator":"GTE","message":"Disk full","cooldown_seconds":0}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"cooldown_seconds":0`)

	for i := 0; i < 2; i++ {
		w = call(r, http.MethodPost, "/api/metrics", alice, `{"metric_name":"disk","value":85}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		sum := decode[model.IngestSummary](t, w)
		assert.Equal(t, 1, sum.Triggered)
		assert.Equal(t, 0, sum.CooldownSkipped)
	}
	assert.Len(t, db.events, 2)
}

func TestBadRequests(t *testing.T) {
	db := newMemDB()
	r := newTestRouter(db, nil)
	cases := []struct {
		method, path, body, want string
	}{
		{http.MethodPost, "/api/metrics", `{"metric_name":`, "Invalid JSON body"},
		{http.MethodPost, "/api/metrics", ``, "Invalid JSON body"},
		{http.MethodPost, "/api/metrics", `"cpu"`, "Request body must be a JSON object"},
		{http.MethodPost, "/api/metrics", `{"value":1}`, "metric_name is required"},
		{http.MethodPost, "/api/metrics", `{"metric_name":"cpu","value":"hot"}`, "value must be a number"},
		{http.MethodPost, "/api/metrics", `{"metric_name":"cpu","value":1,"timestamp":"later"}`, "timestamp must be a valid ISO timestamp"},
		{http.MethodPost, "/api/alerts", `{"metric_name":"cpu","threshold":1,"comparator":"gt","message":"m"}`, "comparator must be one of GT, LT, GTE, LTE, EQ"},
		{http.MethodPost, "/api/alerts", `{"metric_name":"cpu","threshold":1,"comparator":"GT","message":"m","cooldown_seconds":-1}`, "cooldown_seconds must be 0 or a positive number"},
		{http.MethodGet, "/api/alert-events?cursor=yesterday", ``, "cursor must be a valid ISO timestamp"},
	}
	for _, tc := range cases {
		w := call(r, tc.method, tc.path, alice, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.body)
		assert.JSONEq(t, `{"error":"`+tc.want+`"}`, w.Body.String(), tc.body)
	}
	assert.Empty(t, db.samples)
	assert.Empty(t, db.rules)
}

func TestStorageFailureIsOpaque(t *testing.T) {
	db := newMemDB()
	db.failAll = model.Storage("insert metric sample", errors.New("pq: password authentication failed"))
	r := newTestRouter(db, nil)

	w := call(r, http.MethodPost, "/api/metrics", alice, `{"metric_name":"cpu","value":1}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())

	w = call(r, http.MethodGet, "/api/alerts", alice, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestHealthzAndMetrics(t *testing.T) {
	r := newTestRouter(newMemDB(), fakePinger{})
	w := call(r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	r = newTestRouter(newMemDB(), fakePinger{err: errors.New("down")})
	w = call(r, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	call(r, http.MethodGet, "/api/alerts", alice, "")
	w = call(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alertdash_http_requests_total")
}
