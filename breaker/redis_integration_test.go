// Copyright (c) 2026 The turnforge Authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

//go:build integration

package breaker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisBreaker(ctx context.Context, t *testing.T) (*RedisBreaker, func()) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, client.Ping(ctx).Err())

	cleanup := func() {
		client.Close()
		_ = container.Terminate(ctx)
	}
	return NewRedisBreaker(client, WithRedisConfigFunc(func(string) Config {
		return Config{FailureThreshold: 3, SuccessThreshold: 2, ResetTimeout: time.Second, Window: time.Minute}
	})), cleanup
}

func TestRedisBreakerSharedAcrossClients(t *testing.T) {
	ctx := context.Background()
	b, cleanup := setupRedisBreaker(ctx, t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.RecordFailure(ctx, "call_llm"))
	}

	state, err := b.State(ctx, "call_llm")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)

	allowed, err := b.Allow(ctx, "call_llm")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRedisBreakerConcurrentFailuresConvergeOnOpen(t *testing.T) {
	ctx := context.Background()
	b, cleanup := setupRedisBreaker(ctx, t)
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.RecordFailure(ctx, "flaky_tool")
		}()
	}
	wg.Wait()

	state, err := b.State(ctx, "flaky_tool")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)
}
