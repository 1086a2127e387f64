package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/api/middleware"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/telegram"
)

// AuthTelegramRequest carries the Mini App launch parameters.
type AuthTelegramRequest struct {
	InitData string `json:"init_data" binding:"required"`
}

// AuthUser is the player returned by AuthTelegram.
type AuthUser struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
}

// AuthTelegramResponse is the token issued for a verified launch.
type AuthTelegramResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ChatInstance string    `json:"chat_instance,omitempty"`
	User         AuthUser  `json:"user"`
}

// AuthTelegram handles POST /api/v1/auth/telegram.
func (s *Server) AuthTelegram(c *gin.Context) {
	var req AuthTelegramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "init_data is required"))
		return
	}

	data, err := telegram.ValidateInitData(req.InitData, s.telegram.BotToken, s.telegram.InitDataTTL, s.now())
	if err != nil {
		logger.Ctx(c.Request.Context()).Warn("Telegram login rejected", zap.Error(err))
		code := apperrors.CodeAuthFailed
		if errors.Is(err, telegram.ErrInitDataExpired) {
			code = apperrors.CodeTokenExpired
		}
		_ = c.Error(apperrors.Unauthorized(code, "invalid telegram init data"))
		return
	}

	var user domain.User
	err = s.inScope(c, func(ctx context.Context) error {
		saved, err := bus.Call[[]domain.User](ctx, s.bus, bus.NewEvent(domain.TopicUserUpsert,
			bus.Record(domain.UserUpsertPayload{
				TelegramID:   data.User.ID,
				Username:     data.User.Username,
				FirstName:    data.User.FirstName,
				LastName:     data.User.LastName,
				LanguageCode: data.User.LanguageCode,
				IsBot:        data.User.IsBot,
			})), s.requestTimeout)
		if err != nil {
			return err
		}
		user = saved[0]
		return nil
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	token, expiresAt, err := middleware.GenerateToken(s.jwtCfg, middleware.Identity{
		UserID:       user.ID,
		TelegramID:   user.TelegramID,
		Username:     user.Username,
		ChatInstance: data.ChatInstance,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, AuthTelegramResponse{
		Token:        token,
		ExpiresAt:    expiresAt,
		ChatInstance: data.ChatInstance,
		User: AuthUser{
			ID:         user.ID,
			TelegramID: user.TelegramID,
			Username:   user.Username,
			FirstName:  user.FirstName,
		},
	})
}
