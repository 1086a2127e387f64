package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/infrastructure"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/pkg/worker"
	"craftbot.io/craftbot/internal/uow"
)

const instrumentationName = "craftbot.io/craftbot"

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config     *config.Config
	DB         *infrastructure.DatabaseClients
	Pools      *worker.Pools
	Bus        *bus.Bus
	UnitOfWork *uow.UnitOfWork
	Meter      metric.Meter
}

// NewInfrastructure initializes DB, pools, the event bus and the unit of work.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	// Dev-mode: create application tables + River queue tables.
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		BusPoolSize:     cfg.Worker.BusPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	eventBus := bus.New(pools.Bus)
	eventBus.Use(bus.Logging())
	if cfg.Bus.Tracing {
		eventBus.Use(bus.Tracing(otel.Tracer(instrumentationName + "/bus")))
	}

	return &Infrastructure{
		Config:     cfg,
		DB:         db,
		Pools:      pools,
		Bus:        eventBus,
		UnitOfWork: uow.New(uow.NewSQLSessionFactory(db.DB)),
		Meter:      otel.Meter(instrumentationName),
	}, nil
}

// InitRiver initializes the River client on top of a prepared worker
// registry. River is skipped when disabled or when the database is SQLite.
func (i *Infrastructure) InitRiver(workers *river.Workers, periodic []*river.PeriodicJob) error {
	if i == nil || i.DB == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if !i.Config.River.Enabled {
		logger.Info("River disabled by configuration")
		return nil
	}
	if i.DB.Pool == nil {
		logger.Warn("River requires PostgreSQL, background jobs are disabled",
			zap.String("driver", i.DB.Driver),
		)
		return nil
	}
	if err := i.DB.InitRiverClient(workers, periodic, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
