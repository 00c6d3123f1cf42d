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

// Package retry implements the exponential-backoff-with-jitter policy
// the task queue consults when deciding whether a failed task attempt
// earns another try.
package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/turnforge/durable/durerr"
)

// Policy configures retry backoff for a single activity type.
type Policy struct {
	MaxAttempts        int32
	InitialInterval    time.Duration
	BackoffMultiplier  float64
	MaxInterval        time.Duration
	JitterFraction     float64
	NonRetryableKinds  map[string]bool
}

// DefaultPolicy mirrors the spec's stated defaults:
// max_attempts=3, initial=1s, multiplier=2, max=30s, jitter=0.1.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		InitialInterval:   time.Second,
		BackoffMultiplier: 2,
		MaxInterval:       30 * time.Second,
		JitterFraction:    0.1,
	}
}

// ShouldRetry reports whether attempt (1-based, the attempt that just
// failed) should be followed by another, given err and the policy's
// budget and non-retryable-kind set.
func (p Policy) ShouldRetry(attempt int32, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if !durerr.IsRetryable(err) {
		return false
	}
	if kind, ok := errorKind(err); ok && p.NonRetryableKinds[kind] {
		return false
	}
	return true
}

// WaitBefore returns the backoff duration to wait before attempt n
// (1-based; n must be >= 2, the attempt number about to be made).
// base(n) = min(initial * multiplier^(n-2), max)
// wait(n) = base(n) * (1 - jitter + 2*jitter*U[0,1))
func (p Policy) WaitBefore(n int32) time.Duration {
	return p.waitBeforeWithSource(n, rand.Float64)
}

func (p Policy) waitBeforeWithSource(n int32, uniform func() float64) time.Duration {
	if n < 2 {
		return 0
	}
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	base := float64(p.InitialInterval) * math.Pow(multiplier, float64(n-2))
	if maxI := float64(p.MaxInterval); maxI > 0 && base > maxI {
		base = maxI
	}

	jitter := p.JitterFraction
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	factor := (1 - jitter) + 2*jitter*uniform()
	return time.Duration(base * factor)
}

// errorKind extracts a stable string discriminator for err, used to
// check against a policy's NonRetryableKinds set. It recognizes the
// durerr taxonomy's concrete types; anything else reports ok=false.
func errorKind(err error) (string, bool) {
	switch err.(type) {
	case *durerr.FatalError:
		return "fatal", true
	case *durerr.TimeoutError:
		return "timeout", true
	case *durerr.CanceledError:
		return "canceled", true
	default:
		return "", false
	}
}
