package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qiniu/alertdash/internal/alerting/model"
	"github.com/qiniu/alertdash/internal/alerting/service/history"
	"github.com/qiniu/alertdash/internal/alerting/service/ingest"
	"github.com/qiniu/alertdash/internal/alerting/service/ruleset"
	"github.com/qiniu/alertdash/internal/middleware"
)

type Ingester interface {
	Ingest(ctx context.Context, userID string, req ingest.Request) (*model.IngestSummary, error)
}

type RuleManager interface {
	Create(ctx context.Context, userID string, req ruleset.RuleRequest) (*model.AlertRule, error)
	Get(ctx context.Context, userID, id string) (*model.AlertRule, error)
	List(ctx context.Context, userID string) ([]model.AlertRule, error)
	Update(ctx context.Context, userID, id string, req ruleset.RuleRequest) (*model.AlertRule, error)
	Delete(ctx context.Context, userID, id string) error
}

type EventLister interface {
	List(ctx context.Context, userID string, q history.Query) (*model.EventPage, error)
}

type NameLister interface {
	ListNames(ctx context.Context, userID, search string) ([]string, error)
}

// Pinger reports storage health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Ingest       Ingester
	Rules        RuleManager
	Events       EventLister
	Names        NameLister
	DB           Pinger
	Auth         middleware.UserResolver
	QueryTimeout time.Duration
}

type Api struct {
	ingest Ingester
	rules  RuleManager
	events EventLister
	names  NameLister
	db     Pinger
}

// NewApi registers every route on router.
func NewApi(router *gin.Engine, d Deps) *Api {
	api := &Api{ingest: d.Ingest, rules: d.Rules, events: d.Events, names: d.Names, db: d.DB}
	api.setupRouters(router, d)
	return api
}

func (api *Api) setupRouters(router *gin.Engine, d Deps) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", api.Healthz)

	g := router.Group("/api", middleware.Authentication(d.Auth), middleware.Timeout(d.QueryTimeout))
	g.POST("/metrics", api.IngestMetric)
	g.GET("/alerts", api.ListAlerts)
	g.POST("/alerts", api.CreateAlert)
	g.GET("/alerts/:id", api.GetAlert)
	g.PATCH("/alerts/:id", api.UpdateAlert)
	g.DELETE("/alerts/:id", api.DeleteAlert)
	g.GET("/alert-events", api.ListAlertEvents)
	g.GET("/metric-names", api.ListMetricNames)
}

// Healthz implements GET /healthz.
func (api *Api) Healthz(c *gin.Context) {
	if api.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := api.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func userID(c *gin.Context) string {
	id, _ := middleware.UserID(c)
	return id
}
