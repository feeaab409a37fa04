// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/memory"
	authpg "github.com/gatekeep/gatekeep/internal/auth/postgres"
	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/session"
	sessionmongo "github.com/gatekeep/gatekeep/internal/session/mongo"
	sessionpg "github.com/gatekeep/gatekeep/internal/session/postgres"
	sessionredis "github.com/gatekeep/gatekeep/internal/session/redis"
	"github.com/gatekeep/gatekeep/internal/store"
	"github.com/gatekeep/gatekeep/internal/strategy"
)

const readinessTimeout = 2 * time.Second

// backends holds the user repository and session records selected by the
// configuration, plus the health checks and cleanup of their connections.
type backends struct {
	users   auth.UserRepository
	records session.RecordStore
	checks  map[string]func(ctx context.Context) error
	closers []func(ctx context.Context)
	logger  *slog.Logger
}

// openBackends connects the configured stores. Users live in PostgreSQL when
// database.url is set and in memory otherwise. Session records are only
// opened for the persisted session strategy.
func openBackends(ctx context.Context, cfg *config.Config, kind strategy.Kind, deps *ServeDeps, logger *slog.Logger) (*backends, error) {
	b := &backends{
		checks: map[string]func(ctx context.Context) error{},
		logger: logger,
	}

	var pool Pool
	if cfg.Database.URL != "" {
		p, err := deps.PoolFactory(ctx, cfg.Database.URL, store.ConnectOptions{
			Attempts: cfg.Database.ConnectAttempts,
			Logger:   logger,
		})
		if err != nil {
			return nil, oops.With("operation", "connect to database").Wrap(err)
		}
		pool = p
		b.closers = append(b.closers, func(context.Context) { p.Close() })
		b.checks["postgres"] = p.Ping
		b.users = authpg.NewUserRepository(p)
		logger.Info("connected to database")
	} else {
		logger.Warn("no database url configured, users are kept in memory")
		b.users = memory.NewUserRepository()
	}

	if kind != strategy.KindPersistedSession {
		return b, nil
	}

	switch cfg.Session.Store {
	case config.StorePostgres:
		if pool == nil {
			b.close(ctx)
			return nil, oops.Code("CONFIG_INVALID").With("key", "database.url").
				Errorf("the postgres session store needs database.url")
		}
		b.records = sessionpg.NewRecordStore(pool)
	case config.StoreRedis:
		client := deps.RedisFactory(cfg.Redis)
		b.closers = append(b.closers, func(context.Context) {
			if err := client.Close(); err != nil {
				logger.Warn("error closing redis client", "error", err)
			}
		})
		b.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		b.records = sessionredis.NewRecordStore(client)
	case config.StoreMongo:
		client, err := deps.MongoFactory(ctx, cfg.Mongo)
		if err != nil {
			b.close(ctx)
			return nil, oops.Code("MONGO_CONNECT_FAILED").With("database", cfg.Mongo.Database).Wrap(err)
		}
		b.closers = append(b.closers, func(ctx context.Context) {
			if err := client.Disconnect(ctx); err != nil {
				logger.Warn("error disconnecting from mongo", "error", err)
			}
		})
		b.checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
		b.records = sessionmongo.NewRecordStoreForDatabase(client.Database(cfg.Mongo.Database))
	default:
		logger.Warn("session records are kept in memory and do not survive a restart")
		b.records = session.NewMemoryRecords()
	}

	logger.Info("session records ready", "store", cfg.Session.Store)
	return b, nil
}

// ready reports whether every backend answers its health check.
func (b *backends) ready() bool {
	for name, check := range b.checks {
		ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			b.logger.Warn("readiness check failed", "backend", name, "error", err)
			return false
		}
	}
	return true
}

// close releases connections in reverse order of opening.
func (b *backends) close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i](ctx)
	}
	b.closers = nil
}
