package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/api/middleware"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/telegram"
)

// WebhookSecretHeader carries the secret token set with setWebhook.
const WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook handles POST /telegram/webhook.
//
// Updates rejected for client-side reasons are acknowledged so Telegram
// does not redeliver them; server failures return 500 and are retried.
func (s *Server) TelegramWebhook(c *gin.Context) {
	if secret := s.telegram.WebhookSecret; secret != "" {
		got := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			_ = c.Error(apperrors.Unauthorized(apperrors.CodeAuthFailed, "invalid webhook secret"))
			return
		}
	}

	var upd telegram.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "malformed update"))
		return
	}

	if err := s.ingestUC.Execute(c.Request.Context(), upd); err != nil {
		if !middleware.IsClientError(err) {
			_ = c.Error(err)
			return
		}
		logger.Ctx(c.Request.Context()).Warn("Update dropped",
			zap.Int64("update_id", upd.UpdateID),
			zap.Error(err),
		)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
