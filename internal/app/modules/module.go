// Package modules contains domain-oriented dependency modules wired by the
// composition root.
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"craftbot.io/craftbot/internal/api/handlers"
	"craftbot.io/craftbot/internal/bus"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// RegisterSubscribers attaches module-owned handlers to the event bus.
	RegisterSubscribers(*bus.Bus)

	// ContributeServerDeps injects module-owned dependencies into the HTTP server deps.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}
