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
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBreaker(WithConfigFunc(func(string) Config {
		return Config{FailureThreshold: 3, SuccessThreshold: 2, ResetTimeout: time.Minute, Window: time.Minute}
	}))

	for i := 0; i < 2; i++ {
		require.NoError(t, b.RecordFailure(ctx, "call_llm"))
		state, err := b.State(ctx, "call_llm")
		require.NoError(t, err)
		assert.Equal(t, StateClosed, state)
	}

	require.NoError(t, b.RecordFailure(ctx, "call_llm"))
	state, err := b.State(ctx, "call_llm")
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)

	allowed, err := b.Allow(ctx, "call_llm")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLocalBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	b := NewLocalBreaker(
		WithLocalClock(mock),
		WithConfigFunc(func(string) Config {
			return Config{FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: 30 * time.Second, Window: time.Minute}
		}))

	require.NoError(t, b.RecordFailure(ctx, "x"))
	state, _ := b.State(ctx, "x")
	require.Equal(t, StateOpen, state)

	allowed, err := b.Allow(ctx, "x")
	require.NoError(t, err)
	assert.False(t, allowed)

	mock.Add(31 * time.Second)

	allowed, err = b.Allow(ctx, "x")
	require.NoError(t, err)
	assert.True(t, allowed)

	state, _ = b.State(ctx, "x")
	assert.Equal(t, StateHalfOpen, state)
}

func TestLocalBreakerHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	b := NewLocalBreaker(
		WithLocalClock(mock),
		WithConfigFunc(func(string) Config {
			return Config{FailureThreshold: 1, SuccessThreshold: 2, ResetTimeout: time.Second, Window: time.Minute}
		}))

	require.NoError(t, b.RecordFailure(ctx, "x"))
	mock.Add(2 * time.Second)
	allowed, _ := b.Allow(ctx, "x")
	require.True(t, allowed)

	require.NoError(t, b.RecordSuccess(ctx, "x"))
	state, _ := b.State(ctx, "x")
	assert.Equal(t, StateHalfOpen, state)

	require.NoError(t, b.RecordSuccess(ctx, "x"))
	state, _ = b.State(ctx, "x")
	assert.Equal(t, StateClosed, state)
}

func TestLocalBreakerHalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	b := NewLocalBreaker(
		WithLocalClock(mock),
		WithConfigFunc(func(string) Config {
			return Config{FailureThreshold: 1, SuccessThreshold: 2, ResetTimeout: time.Second, Window: time.Minute}
		}))

	require.NoError(t, b.RecordFailure(ctx, "x"))
	mock.Add(2 * time.Second)
	_, _ = b.Allow(ctx, "x")

	require.NoError(t, b.RecordFailure(ctx, "x"))
	state, _ := b.State(ctx, "x")
	assert.Equal(t, StateOpen, state)
}

func TestLocalBreakerDefaultsApplyWhenConfigFuncOmitted(t *testing.T) {
	ctx := context.Background()
	b := NewLocalBreaker()
	state, err := b.State(ctx, "unconfigured_type")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)
}
