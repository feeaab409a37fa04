// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"context"
	"io"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/gatekeep/gatekeep/internal/config"
	"github.com/gatekeep/gatekeep/internal/observability"
	"github.com/gatekeep/gatekeep/internal/session/redis"
	"github.com/gatekeep/gatekeep/internal/store"
	"github.com/gatekeep/gatekeep/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory opens the PostgreSQL pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string, opts store.ConnectOptions) (Pool, error)

	// RedisFactory creates the redis client for session records.
	// Default: goredis.NewClient
	RedisFactory func(cfg config.RedisConfig) RedisClient

	// MongoFactory connects to MongoDB for session records.
	// Default: mongo.Connect
	MongoFactory func(ctx context.Context, cfg config.MongoConfig) (MongoClient, error)

	// WebServerFactory creates the HTTP front end.
	// Default: web.NewServer
	WebServerFactory func(cfg web.Config) (WebServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer
}

// Pool wraps the methods used from *pgxpool.Pool.
type Pool interface {
	store.Querier
	Ping(ctx context.Context) error
	Close()
}

// RedisClient wraps the methods used from *goredis.Client.
type RedisClient interface {
	redis.Client
	Ping(ctx context.Context) *goredis.StatusCmd
	Close() error
}

// MongoClient wraps the methods used from *mongo.Client.
type MongoClient interface {
	Database(name string, opts ...*options.DatabaseOptions) *mongo.Database
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	Disconnect(ctx context.Context) error
}

// WebServer wraps the methods used from web.Server.
type WebServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *ServeDeps) setDefaults() {
	if d.PoolFactory == nil {
		d.PoolFactory = func(ctx context.Context, url string, opts store.ConnectOptions) (Pool, error) {
			return store.Connect(ctx, url, opts)
		}
	}
	if d.RedisFactory == nil {
		d.RedisFactory = func(cfg config.RedisConfig) RedisClient {
			return goredis.NewClient(&goredis.Options{
				Addr:     cfg.Addr,
				Password: cfg.Password,
				DB:       cfg.DB,
			})
		}
	}
	if d.MongoFactory == nil {
		d.MongoFactory = func(ctx context.Context, cfg config.MongoConfig) (MongoClient, error) {
			return mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
		}
	}
	if d.WebServerFactory == nil {
		d.WebServerFactory = func(cfg web.Config) (WebServer, error) {
			return web.NewServer(cfg)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
}
