// Package handlers implements the HTTP API and the Telegram webhook.
//
// Handlers never touch storage: each request opens a unit of work and
// talks to the domain services over the bus. Errors are attached with
// c.Error and rendered by middleware.ErrorHandler.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"craftbot.io/craftbot/internal/api/middleware"
	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/uow"
	"craftbot.io/craftbot/internal/usecase"
)

const defaultRequestTimeout = 5 * time.Second

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server implements all API handlers.
type Server struct {
	bus            *bus.Bus
	uow            *uow.UnitOfWork
	combineUC      *usecase.CombineUseCase
	ingestUC       *usecase.IngestUpdateUseCase
	jwtCfg         middleware.JWTConfig
	telegram       config.TelegramConfig
	db             Pinger
	requestTimeout time.Duration
	now            func() time.Time
}

// ServerDeps holds all dependencies for creating a Server.
type ServerDeps struct {
	Bus            *bus.Bus
	UnitOfWork     *uow.UnitOfWork
	CombineUC      *usecase.CombineUseCase
	IngestUC       *usecase.IngestUpdateUseCase
	JWTCfg         middleware.JWTConfig
	Telegram       config.TelegramConfig
	DB             Pinger
	RequestTimeout time.Duration
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Server{
		bus:            deps.Bus,
		uow:            deps.UnitOfWork,
		combineUC:      deps.CombineUC,
		ingestUC:       deps.IngestUC,
		jwtCfg:         deps.JWTCfg,
		telegram:       deps.Telegram,
		db:             deps.DB,
		requestTimeout: timeout,
		now:            time.Now,
	}
}

// RegisterHandlers mounts every route on router.
func RegisterHandlers(router gin.IRouter, s *Server) {
	router.GET("/health/live", s.GetLiveness)
	router.GET("/health/ready", s.GetReadiness)

	router.POST("/telegram/webhook", s.TelegramWebhook)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/telegram", s.AuthTelegram)
	v1.POST("/craft/combine", s.Combine)
	v1.GET("/craft/elements", s.ListElements)
	v1.GET("/craft/elements/:id", s.GetElement)
}

// inScope runs fn in a unit of work bound to the request.
func (s *Server) inScope(c *gin.Context, fn func(ctx context.Context) error) error {
	return s.uow.Start(c.Request.Context(), fn)
}
