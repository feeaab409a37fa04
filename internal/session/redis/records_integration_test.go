// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gatekeep/gatekeep/internal/session"
	"github.com/gatekeep/gatekeep/internal/session/redis"
)

func TestRecordStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	records := redis.NewRecordStore(client)
	s := session.NewPersistentStore(
		session.NewExpiringStore(session.NewMemoryStore(), time.Hour),
		records)

	id, err := s.Create(ctx, "user-1")
	require.NoError(t, err)

	subject, ok, err := s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", subject)

	existed, err := s.Destroy(ctx, id)
	require.NoError(t, err)
	assert.True(t, existed)

	_, ok, err = s.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
