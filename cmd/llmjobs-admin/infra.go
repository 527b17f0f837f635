package main

import (
	"fmt"

	"github.com/assistly/llm-jobs/config"
	"github.com/assistly/llm-jobs/internal/bootstrap"
	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/data"
)

// openJobStore connects the configured store backend. The returned cleanup
// closes the underlying connection and must always be called.
//
//nolint:ireturn // the driver is a runtime decision.
func openJobStore(cmdCtx *commandContext) (core.JobStore, func(), error) {
	cfg := &cmdCtx.Config
	storeCfg := data.JobStoreConfig{
		RetentionDays: cfg.Store.RetentionDays,
		KeyPrefix:     cfg.Store.KeyPrefix,
		Logger:        cmdCtx.Logger,
	}

	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
			RedisConfig: cfg.Redis,
			Logger:      cmdCtx.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cleanup := func() {
			if cerr := client.Close(); cerr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", cerr)
			}
		}
		return data.NewRedisJobStore(client, storeCfg), cleanup, nil

	case config.StoreDriverPostgres:
		db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig: cfg.Postgres,
			Logger:   cmdCtx.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		cleanup := func() {
			if cerr := db.Close(); cerr != nil {
				cmdCtx.Logger.Warn("db close failed", "error", cerr)
			}
		}
		return data.NewPostgresJobStore(db, storeCfg), cleanup, nil

	default:
		return nil, nil, fmt.Errorf("store driver %q has no admin backend", cfg.Store.Driver)
	}
}
