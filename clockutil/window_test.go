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

package clockutil_test

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"

	"github.com/turnforge/durable/clockutil"
)

func TestRotatingHistogramTracksPercentilesWithinWindow(t *testing.T) {
	mock := clock.NewMock()
	h := clockutil.NewRotatingHistogram(3, time.Minute, mock)

	for i := 1; i <= 100; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}

	p50 := h.ValueAtPercentile(50)
	assert.InDelta(t, 50*time.Millisecond, p50, float64(2*time.Millisecond))
}

func TestRotatingHistogramRotatesOnIntervalElapsed(t *testing.T) {
	mock := clock.NewMock()
	h := clockutil.NewRotatingHistogram(2, time.Minute, mock)

	h.Record(500 * time.Millisecond)
	mock.Add(2 * time.Minute)
	h.Record(10 * time.Millisecond)

	p99 := h.ValueAtPercentile(99)
	assert.Less(t, p99, 500*time.Millisecond)
}

func TestRotatingHistogramClampsOutOfRangeSamples(t *testing.T) {
	mock := clock.NewMock()
	h := clockutil.NewRotatingHistogram(1, time.Minute, mock)

	h.Record(0)
	h.Record(time.Hour)

	assert.Greater(t, h.ValueAtPercentile(100), time.Duration(0))
}
