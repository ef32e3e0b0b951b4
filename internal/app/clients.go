package app

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/saarzint/AI-Agents-Geoferry/internal/data/db"
	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
	"github.com/saarzint/AI-Agents-Geoferry/internal/realtime/bus"
)

type Clients struct {
	DB    *gorm.DB
	Redis *goredis.Client
	Bus   bus.Bus
}

// wireClients opens the database and, when REDIS_ADDR is set, Redis. Without Redis
// the event bus falls back to the in-process implementation.
func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	theDB, err := db.Open(log, cfg.DB)
	if err != nil {
		return Clients{}, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		closeDB(theDB)
		return Clients{}, fmt.Errorf("automigrate: %w", err)
	}

	out := Clients{DB: theDB}
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set; using in-memory event bus and cooldown")
		out.Bus = bus.NewMemoryBus(log)
		return out, nil
	}
	rdb, err := bus.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		closeDB(theDB)
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}
	b, err := bus.NewRedisBus(log, rdb, cfg.Redis.Channel)
	if err != nil {
		_ = rdb.Close()
		closeDB(theDB)
		return Clients{}, fmt.Errorf("init redis bus: %w", err)
	}
	out.Redis = rdb
	out.Bus = b
	return out, nil
}

// Close releases the bus, Redis and the database pool, in that order.
func (c *Clients) Close(context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Bus != nil {
		errs = append(errs, c.Bus.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

func closeDB(theDB *gorm.DB) {
	if theDB == nil {
		return
	}
	if sqlDB, err := theDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
