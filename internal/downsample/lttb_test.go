// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package downsample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inflowmetrics/historian/internal/sample"
)

func genSamples(n int) []sample.Sample {
	out := make([]sample.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = sample.Sample{
			SensorID:    "s",
			TimestampMs: int64(i) * 1000,
			Value:       float64(i),
			Quality:     1,
		}
	}
	return out
}

// TestBelowThresholdReturnsCopy covers the no-op path: len(samples) <=
// threshold must return every input point, not a downsampled subset.
func TestBelowThresholdReturnsCopy(t *testing.T) {
	in := genSamples(5)
	out := LTTB(in, 10)
	require.Equal(t, in, out)

	// mutating the output must not alias the input
	out[0].Value = 999
	assert.Equal(t, float64(0), in[0].Value)
}

// TestScenario5 is scenario 5 of spec.md §8: 100 samples (i*1000, i, 1),
// k=10 -> output length 10, first ts=0, last ts=99000, all timestamps
// drawn from the input.
func TestScenario5(t *testing.T) {
	in := genSamples(100)
	out := LTTB(in, 10)

	require.Len(t, out, 10)
	assert.Equal(t, int64(0), out[0].TimestampMs)
	assert.Equal(t, int64(99000), out[len(out)-1].TimestampMs)

	valid := make(map[int64]bool, len(in))
	for _, s := range in {
		valid[s.TimestampMs] = true
	}
	for _, s := range out {
		assert.True(t, valid[s.TimestampMs], "output timestamp %d not present in input", s.TimestampMs)
	}
}

// TestEndpointsAlwaysPreserved is P6: the first and last output points
// always equal the first and last input points, for varying sizes.
func TestEndpointsAlwaysPreserved(t *testing.T) {
	for _, n := range []int{10, 37, 250, 1000, 9999} {
		for _, k := range []int{3, 4, 50, 200} {
			in := genSamples(n)
			out := LTTB(in, k)
			require.NotEmpty(t, out)
			assert.Equal(t, in[0], out[0], "n=%d k=%d", n, k)
			assert.Equal(t, in[len(in)-1], out[len(out)-1], "n=%d k=%d", n, k)
		}
	}
}

// TestOutputSize is P7: the output has exactly min(threshold, n) points.
func TestOutputSize(t *testing.T) {
	for _, n := range []int{10, 37, 250, 1000, 9999} {
		for _, k := range []int{3, 4, 50, 200, 10000} {
			in := genSamples(n)
			out := LTTB(in, k)
			want := k
			if n < k {
				want = n
			}
			assert.Equal(t, want, len(out), "n=%d k=%d", n, k)
		}
	}
}

// TestOutputPreservesOrder verifies the downsampled series stays in
// ascending timestamp order, since each bucket only ever contributes one
// point and buckets are visited left to right.
func TestOutputPreservesOrder(t *testing.T) {
	in := genSamples(500)
	out := LTTB(in, 25)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].TimestampMs, out[i].TimestampMs)
	}
}

// TestThresholdBelowThreeReturnsFullCopy covers the degenerate-threshold
// edge case called out in §4.6: k < 3 cannot form a triangle, so the
// reducer falls back to returning the input unchanged.
func TestThresholdBelowThreeReturnsFullCopy(t *testing.T) {
	in := genSamples(20)
	out := LTTB(in, 2)
	assert.Equal(t, in, out)
}
