package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/alertdash/internal/alerting/service/ingest"
)

// IngestMetric implements POST /api/metrics.
func (api *Api) IngestMetric(c *gin.Context) {
	var req ingest.Request
	if err := decodeObject(c, &req); err != nil {
		writeError(c, err, "")
		return
	}
	summary, err := api.ingest.Ingest(c.Request.Context(), userID(c), req)
	if err != nil {
		writeError(c, err, "")
		return
	}
	log.Debug().Str("user_id", userID(c)).Int("evaluated", summary.Evaluated).
		Int("triggered", summary.Triggered).Int("cooldown_skipped", summary.CooldownSkipped).Msg("metric ingested")
	c.JSON(http.StatusOK, summary)
}
