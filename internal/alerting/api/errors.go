package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/alertdash/internal/alerting/model"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidJSON = model.Invalid("body", "Invalid JSON body")
	errNotObject   = model.Invalid("body", "Request body must be a JSON object")
)

// decodeObject reads a JSON object body into dst.
func decodeObject(c *gin.Context, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil || !json.Valid(raw) {
		return errInvalidJSON
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return errNotObject
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errInvalidJSON
	}
	return nil
}

// writeError maps err to a status and the {error} body. notFound is the message
// used for model.ErrNotFound.
func writeError(c *gin.Context, err error, notFound string) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.Is(err, model.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	default:
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).
			Str("path", c.FullPath()).Str("user_id", userID(c)).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
