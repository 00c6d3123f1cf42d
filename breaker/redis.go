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

package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBreaker is the distributed form of Breaker: every worker process
// that shares a Redis instance observes the same Closed/Open/HalfOpen
// decision for a given activity type. Transitions are applied with a
// Lua script so the read-modify-write is atomic even under concurrent
// callers from different processes.
type RedisBreaker struct {
	client    redis.Cmdable
	keyPrefix string
	config    func(activityType string) Config
}

// RedisBreakerOption configures a RedisBreaker.
type RedisBreakerOption func(*RedisBreaker)

// WithRedisConfigFunc overrides the per-activity-type Config lookup.
func WithRedisConfigFunc(f func(activityType string) Config) RedisBreakerOption {
	return func(b *RedisBreaker) { b.config = f }
}

// WithKeyPrefix sets the Redis key prefix the breaker stores its hashes
// under. Defaults to "durable:breaker:".
func WithKeyPrefix(prefix string) RedisBreakerOption {
	return func(b *RedisBreaker) { b.keyPrefix = prefix }
}

// NewRedisBreaker wraps an already-connected redis.Cmdable (accepts
// *redis.Client or *redis.ClusterClient).
func NewRedisBreaker(client redis.Cmdable, opts ...RedisBreakerOption) *RedisBreaker {
	b := &RedisBreaker{
		client:    client,
		keyPrefix: "durable:breaker:",
		config:    func(string) Config { return DefaultConfig() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *RedisBreaker) key(activityType string) string {
	return b.keyPrefix + activityType
}

// allowScript reads the hash at KEYS[1] and decides whether a call may
// proceed, transitioning Open -> HalfOpen in place if the reset timeout
// has elapsed. Returns 1 (allow) or 0 (deny).
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])

local state = redis.call('HGET', key, 'state')
if state == false or state == 'closed' or state == 'half_open' then
	return 1
end

local open_until = tonumber(redis.call('HGET', key, 'open_until') or '0')
if now >= open_until then
	redis.call('HSET', key, 'state', 'half_open', 'half_open_success', '0')
	return 1
end
return 0
`)

// recordScript applies a success/failure outcome to the breaker hash at
// KEYS[1] and performs the resulting state transition, if any.
// ARGV: outcome ('success'|'failure'), now, failure_threshold,
// success_threshold, reset_timeout_seconds, window_seconds.
var recordScript = redis.NewScript(`
local key = KEYS[1]
local outcome = ARGV[1]
local now = tonumber(ARGV[2])
local failure_threshold = tonumber(ARGV[3])
local success_threshold = tonumber(ARGV[4])
local reset_timeout = tonumber(ARGV[5])
local window = tonumber(ARGV[6])

local state = redis.call('HGET', key, 'state') or 'closed'

if outcome == 'success' then
	if state == 'half_open' then
		local successes = tonumber(redis.call('HINCRBY', key, 'half_open_success', 1))
		if successes >= success_threshold then
			redis.call('HSET', key, 'state', 'closed', 'consecutive_fails', '0', 'half_open_success', '0')
		end
	elseif state == 'closed' then
		redis.call('HSET', key, 'consecutive_fails', '0')
	end
	return redis.call('HGET', key, 'state')
end

-- outcome == 'failure'
if state == 'half_open' then
	redis.call('HSET', key, 'state', 'open', 'open_until', tostring(now + reset_timeout), 'half_open_success', '0')
	return 'open'
elseif state == 'closed' then
	local first_failure_at = tonumber(redis.call('HGET', key, 'first_failure_at') or '0')
	local fails = tonumber(redis.call('HGET', key, 'consecutive_fails') or '0')
	if fails == 0 or (now - first_failure_at) > window then
		redis.call('HSET', key, 'first_failure_at', tostring(now))
		fails = 0
	end
	fails = fails + 1
	redis.call('HSET', key, 'consecutive_fails', tostring(fails))
	if fails >= failure_threshold then
		redis.call('HSET', key, 'state', 'open', 'open_until', tostring(now + reset_timeout))
		return 'open'
	end
	return 'closed'
end
return state
`)

func (b *RedisBreaker) Allow(ctx context.Context, activityType string) (bool, error) {
	res, err := allowScript.Run(ctx, b.client, []string{b.key(activityType)}, time.Now().Unix()).Int()
	if err != nil {
		return false, fmt.Errorf("breaker: allow script for %s: %w", activityType, err)
	}
	return res == 1, nil
}

func (b *RedisBreaker) RecordSuccess(ctx context.Context, activityType string) error {
	return b.record(ctx, activityType, "success")
}

func (b *RedisBreaker) RecordFailure(ctx context.Context, activityType string) error {
	return b.record(ctx, activityType, "failure")
}

func (b *RedisBreaker) record(ctx context.Context, activityType, outcome string) error {
	cfg := b.config(activityType).withDefaults()
	_, err := recordScript.Run(ctx, b.client, []string{b.key(activityType)},
		outcome,
		time.Now().Unix(),
		cfg.FailureThreshold,
		cfg.SuccessThreshold,
		int64(cfg.ResetTimeout.Seconds()),
		int64(cfg.Window.Seconds()),
	).Result()
	if err != nil {
		return fmt.Errorf("breaker: record %s for %s: %w", outcome, activityType, err)
	}
	return nil
}

func (b *RedisBreaker) State(ctx context.Context, activityType string) (State, error) {
	state, err := b.client.HGet(ctx, b.key(activityType), "state").Result()
	if err == redis.Nil {
		return StateClosed, nil
	}
	if err != nil {
		return "", fmt.Errorf("breaker: get state for %s: %w", activityType, err)
	}
	return State(state), nil
}

var _ Breaker = (*RedisBreaker)(nil)
