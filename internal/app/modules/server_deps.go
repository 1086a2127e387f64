package modules

import (
	"craftbot.io/craftbot/internal/api/handlers"
	"craftbot.io/craftbot/internal/api/middleware"
	"craftbot.io/craftbot/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(cfg *config.Config, infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Bus:        infra.Bus,
		UnitOfWork: infra.UnitOfWork,
		JWTCfg: middleware.JWTConfig{
			SigningKey: []byte(cfg.Security.JWTSecret),
			Issuer:     cfg.Security.JWTIssuer,
			ExpiresIn:  cfg.Security.JWTExpiresIn,
		},
		DB:             infra.DB,
		RequestTimeout: cfg.Bus.RequestTimeout,
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
