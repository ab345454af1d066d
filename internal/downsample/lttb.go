// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package downsample implements the Visual Downsampler of SPEC_FULL.md
// §4.6: Largest-Triangle-Three-Buckets reduction preserving the first and
// last points, adapted from the project's existing LTTB resampler to
// operate on Sample values instead of raw metric series.
package downsample

import (
	"math"

	"github.com/inflowmetrics/historian/internal/sample"
)

// LTTB reduces samples to threshold points using the
// Largest-Triangle-Three-Buckets algorithm. If threshold < 3 or
// len(samples) <= threshold, samples is returned unchanged (a copy).
// Output timestamps are always original timestamps from the input; the
// output preserves input order, and when threshold >= 3 it has exactly
// min(threshold, n) samples.
func LTTB(samples []sample.Sample, threshold int) []sample.Sample {
	n := len(samples)
	if threshold < 3 || n <= threshold {
		out := make([]sample.Sample, n)
		copy(out, samples)
		return out
	}

	out := make([]sample.Sample, 0, threshold)
	out = append(out, samples[0])

	bucketSize := float64(n) / float64(threshold)
	a := 0 // index of the previously kept point

	for i := 0; i < threshold-2; i++ {
		bucketStart := int(math.Floor(float64(i+1) * bucketSize))
		bucketEnd := int(math.Floor(float64(i+2) * bucketSize))
		if bucketEnd > n {
			bucketEnd = n
		}
		if bucketStart >= bucketEnd {
			bucketStart = bucketEnd - 1
		}

		nextStart := bucketEnd
		nextEnd := int(math.Floor(float64(i+3) * bucketSize))
		if nextEnd > n {
			nextEnd = n
		}
		avgX, avgY := averagePoint(samples, nextStart, nextEnd)

		best := pickLargestTriangle(samples, a, bucketStart, bucketEnd, avgX, avgY)
		out = append(out, samples[best])
		a = best
	}

	out = append(out, samples[n-1])
	return out
}

// averagePoint computes the average (x, y) of samples[start:end], used as
// vertex C of the triangle for the preceding bucket, per §4.6's "average
// point of bucket i+1". If the range is empty it collapses to the single
// point at start, clamped to the slice.
func averagePoint(samples []sample.Sample, start, end int) (float64, float64) {
	if end <= start {
		end = start + 1
	}
	var sumX, sumY float64
	count := 0
	for i := start; i < end && i < len(samples); i++ {
		sumX += float64(i)
		sumY += samples[i].Value
		count++
	}
	if count == 0 {
		return float64(start), 0
	}
	return sumX / float64(count), sumY / float64(count)
}

// pickLargestTriangle returns the index in [rangeStart, rangeEnd) of the
// sample that, together with the fixed point A (index aIdx) and the
// average point C (cx, cy), forms the triangle of largest area.
func pickLargestTriangle(samples []sample.Sample, aIdx, rangeStart, rangeEnd int, cx, cy float64) int {
	ax, ay := float64(aIdx), samples[aIdx].Value
	best := rangeStart
	bestArea := -1.0
	for j := rangeStart; j < rangeEnd; j++ {
		bx, by := float64(j), samples[j].Value
		area := triangleArea(ax, ay, bx, by, cx, cy)
		if area > bestArea {
			bestArea = area
			best = j
		}
	}
	return best
}

func triangleArea(ax, ay, bx, by, cx, cy float64) float64 {
	area := (ax-cx)*(by-ay) - (ax-bx)*(cy-ay)
	return math.Abs(area * 0.5)
}
