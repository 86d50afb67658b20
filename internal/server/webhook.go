package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"

	applog "gitlab.com/yelinaung/budgetly-bot/internal/logger"
)

// webhook accepts one update per request. Telegram retries non-2xx
// responses, so malformed bodies are acknowledged and dropped.
func (s *Server) webhook(c *gin.Context) {
	if !secretMatches(c.GetHeader(SecretTokenHeader), s.opts.WebhookSecret) {
		applog.Log.Warn().Str("request_id", requestID(c)).Msg("Webhook secret mismatch")
		abortWithError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var update models.Update
	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUpdateBytes)
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		applog.Log.Warn().Err(err).Msg("Failed to decode webhook update")
		c.Status(http.StatusOK)
		return
	}

	s.deps.Updates.HandleUpdate(c.Request.Context(), &update)
	c.Status(http.StatusOK)
}
