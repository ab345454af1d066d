// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEmpty(t *testing.T) {
	assert.Equal(t, []byte{}, Encode(nil))
	pts, err := Decode(Encode(nil))
	require.NoError(t, err)
	assert.Nil(t, pts)
}

func TestRoundTripMonotone(t *testing.T) {
	pts := make([]Point, 0, 1000)
	for i := range 1000 {
		pts = append(pts, Point{Ts: int64(i) * 1000, Val: float64(i) * 1.5})
	}
	out, err := Decode(Encode(pts))
	require.NoError(t, err)
	assert.Equal(t, pts, out)
}

func TestRoundTripConstantValue(t *testing.T) {
	pts := make([]Point, 0, 200)
	for i := range 200 {
		pts = append(pts, Point{Ts: int64(i) * 1000, Val: 42.0})
	}
	out, err := Decode(Encode(pts))
	require.NoError(t, err)
	assert.Equal(t, pts, out)
}

func TestRoundTripSinglePoint(t *testing.T) {
	pts := []Point{{Ts: 123456789, Val: -3.14159}}
	out, err := Decode(Encode(pts))
	require.NoError(t, err)
	assert.Equal(t, pts, out)
}

// TestRoundTripRandom exercises P1: arbitrary sequences with finite values
// and irregular (including non-monotone, large-jump) timestamps must
// still round-trip exactly.
func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		n := rng.Intn(500) + 1
		pts := make([]Point, n)
		ts := rng.Int63n(1 << 40)
		for i := 0; i < n; i++ {
			ts += rng.Int63n(200000) - 50000
			pts[i] = Point{Ts: ts, Val: rng.NormFloat64() * math.Pow(10, float64(rng.Intn(12)-6))}
		}
		out, err := Decode(Encode(pts))
		require.NoError(t, err)
		require.Equal(t, len(pts), len(out))
		for i := range pts {
			assert.Equal(t, pts[i].Ts, out[i].Ts, "trial %d point %d", trial, i)
			assert.Equal(t, math.Float64bits(pts[i].Val), math.Float64bits(out[i].Val), "trial %d point %d", trial, i)
		}
	}
}

func TestRoundTripLargeJumps(t *testing.T) {
	pts := []Point{
		{Ts: 0, Val: 0},
		{Ts: 1 << 40, Val: math.MaxFloat64},
		{Ts: -(1 << 40), Val: -math.MaxFloat64},
		{Ts: 5, Val: math.SmallestNonzeroFloat64},
	}
	out, err := Decode(Encode(pts))
	require.NoError(t, err)
	assert.Equal(t, pts, out)
}

func TestDecodeTruncatedDoesNotPanic(t *testing.T) {
	pts := make([]Point, 0, 50)
	for i := range 50 {
		pts = append(pts, Point{Ts: int64(i) * 1000, Val: float64(i)})
	}
	full := Encode(pts)
	for cut := 1; cut < len(full); cut += 3 {
		assert.NotPanics(t, func() {
			partial, err := Decode(full[:cut])
			if err == nil {
				assert.LessOrEqual(t, len(partial), len(pts))
			}
		})
	}
}
