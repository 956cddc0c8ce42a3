package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qiniu/alertdash/internal/alerting/service/history"
)

// ListAlertEvents implements GET /api/alert-events?metric_name=&alert_id=&limit=&cursor=
func (api *Api) ListAlertEvents(c *gin.Context) {
	page, err := api.events.List(c.Request.Context(), userID(c), history.Query{
		MetricName: c.Query("metric_name"),
		AlertID:    c.Query("alert_id"),
		Limit:      c.Query("limit"),
		Cursor:     c.Query("cursor"),
	})
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, page)
}

// ListMetricNames implements GET /api/metric-names?q=
func (api *Api) ListMetricNames(c *gin.Context) {
	names, err := api.names.ListNames(c.Request.Context(), userID(c), c.Query("q"))
	if err != nil {
		writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}
