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

package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/turnforge/durable/telemetry"
)

func TestRecorderIncCounterAndRecordLatency(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	r := telemetry.NewRecorder(scope, nil, nil, clock.New())

	r.IncCounter("claims", map[string]string{"worker_id": "w1"}, 3)
	r.RecordLatency("activity_latency", 25*time.Millisecond)

	snapshot := scope.Snapshot()
	require.NotEmpty(t, snapshot.Counters())
}

func TestRecorderPercentileReflectsRecordedLatencies(t *testing.T) {
	r := telemetry.NewRecorder(tally.NoopScope, nil, nil, clock.New())
	for i := 0; i < 50; i++ {
		r.RecordLatency("x", time.Duration(i+1)*time.Millisecond)
	}
	p50 := r.Percentile("x", 50)
	assert.Greater(t, p50, time.Duration(0))
}

func TestRecorderStartSpanRecordsError(t *testing.T) {
	r := telemetry.NoOp()
	_, end := r.StartSpan(context.Background(), "claim")
	end(errors.New("boom"))
}

func TestNilRecorderIsSafeNoOp(t *testing.T) {
	var r *telemetry.Recorder
	r.IncCounter("x", nil, 1)
	r.RecordLatency("x", time.Millisecond)
	assert.Equal(t, time.Duration(0), r.Percentile("x", 50))
	_, end := r.StartSpan(context.Background(), "x")
	end(nil)
}
