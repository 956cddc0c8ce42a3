package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qiniu/alertdash/internal/alerting/service/ruleset"
)

const alertNotFound = "Alert not found"

// ListAlerts implements GET /api/alerts.
func (api *Api) ListAlerts(c *gin.Context) {
	rules, err := api.rules.List(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err, alertNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": rules})
}

// CreateAlert implements POST /api/alerts.
func (api *Api) CreateAlert(c *gin.Context) {
	var req ruleset.RuleRequest
	if err := decodeObject(c, &req); err != nil {
		writeError(c, err, alertNotFound)
		return
	}
	rule, err := api.rules.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		writeError(c, err, alertNotFound)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alert": rule})
}

// GetAlert implements GET /api/alerts/:id.
func (api *Api) GetAlert(c *gin.Context) {
	rule, err := api.rules.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		writeError(c, err, alertNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": rule})
}

// UpdateAlert implements PATCH /api/alerts/:id.
func (api *Api) UpdateAlert(c *gin.Context) {
	var req ruleset.RuleRequest
	if err := decodeObject(c, &req); err != nil {
		writeError(c, err, alertNotFound)
		return
	}
	rule, err := api.rules.Update(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err, alertNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": rule})
}

// DeleteAlert implements DELETE /api/alerts/:id. Deleting a missing rule succeeds.
func (api *Api) DeleteAlert(c *gin.Context) {
	if err := api.rules.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeError(c, err, alertNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
