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

// Package clockutil holds small time-source-aware helpers shared by the
// ambient stack. RotatingHistogram is the one piece with enough shape
// to warrant its own package: a codahale/hdrhistogram window that
// rotates on wall-clock time rather than an external caller remembering
// to call Rotate, so tests can drive it deterministically through an
// injected facebookgo/clock.Clock the same way eventlog.MemoryStore and
// worker.Pool do for their own timestamps.
package clockutil

import (
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/facebookgo/clock"
)

const (
	histogramMinValue = 1
	histogramMaxValue = int64(time.Minute)
	histogramSigFigs  = 3
)

// RotatingHistogram accumulates time.Duration samples into a windowed
// hdrhistogram, rotating its buckets every interval as measured by
// clock.Now, so percentile queries reflect a recent window rather than
// the process's entire lifetime.
type RotatingHistogram struct {
	mu         sync.Mutex
	windowed   *hdrhistogram.WindowedHistogram
	clock      clock.Clock
	interval   time.Duration
	buckets    int
	lastRotate time.Time
}

// NewRotatingHistogram builds a RotatingHistogram with buckets windows,
// each covering interval of wall-clock time.
func NewRotatingHistogram(buckets int, interval time.Duration, c clock.Clock) *RotatingHistogram {
	if buckets <= 0 {
		buckets = 1
	}
	if c == nil {
		c = clock.New()
	}
	return &RotatingHistogram{
		windowed:   hdrhistogram.NewWindowed(buckets, histogramMinValue, histogramMaxValue, histogramSigFigs),
		clock:      c,
		interval:   interval,
		buckets:    buckets,
		lastRotate: c.Now(),
	}
}

// Record adds one duration sample, rotating the window first if
// interval has elapsed since the last rotation.
func (h *RotatingHistogram) Record(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rotateIfDueLocked()
	_ = h.windowed.Current.RecordValue(clampToHistogramRange(d))
}

// ValueAtPercentile reports the p-th percentile (0 < p <= 100) of
// samples currently in the window.
func (h *RotatingHistogram) ValueAtPercentile(p float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rotateIfDueLocked()
	return time.Duration(h.windowed.Merge().ValueAtQuantile(p))
}

func (h *RotatingHistogram) rotateIfDueLocked() {
	now := h.clock.Now()
	elapsed := now.Sub(h.lastRotate)
	if elapsed < h.interval {
		return
	}
	rotations := 1
	if h.interval > 0 {
		rotations = h.buckets
		if n := elapsed / h.interval; n < time.Duration(h.buckets) {
			rotations = int(n)
		}
	}
	for i := 0; i < rotations; i++ {
		h.windowed.Rotate()
	}
	h.lastRotate = now
}

func clampToHistogramRange(d time.Duration) int64 {
	v := int64(d)
	if v < histogramMinValue {
		return histogramMinValue
	}
	if v > histogramMaxValue {
		return histogramMaxValue
	}
	return v
}
