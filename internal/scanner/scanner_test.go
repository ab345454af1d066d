// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inflowmetrics/historian/internal/accumulator"
	"github.com/inflowmetrics/historian/internal/codec"
	"github.com/inflowmetrics/historian/internal/coldstore"
	"github.com/inflowmetrics/historian/internal/hotstore"
	"github.com/inflowmetrics/historian/internal/sample"
)

// TestWriteThenReadOneSensor is scenario 1 of spec.md §8.
func TestWriteThenReadOneSensor(t *testing.T) {
	ctx := context.Background()
	hot := hotstore.NewMemory()
	cold := coldstore.NewMemory()
	acc := accumulator.New(hot, 1000)
	sc := New(hot, cold, acc)

	for i := 0; i < 100; i++ {
		require.NoError(t, acc.Write(ctx, sample.Sample{
			SensorID: "s", TimestampMs: int64(1000 * i), Value: float64(i), Quality: 1,
		}))
	}

	out, err := sc.Scan(ctx, "s", 5000, 15000)
	require.NoError(t, err)
	require.Len(t, out, 11)
	for i, smp := range out {
		assert.Equal(t, int64(5000+1000*i), smp.TimestampMs)
		assert.Equal(t, float64(5+i), smp.Value)
	}
}

// TestMultiTierMerge is scenario 6 of spec.md §8: 100 samples in cold
// (t=0..99000), 100 in hot (t=100000..199000), 50 in the accumulator
// (t=200000..249000); a full-range query returns 250 ordered samples
// with no duplicates.
func TestMultiTierMerge(t *testing.T) {
	ctx := context.Background()
	hot := hotstore.NewMemory()
	cold := coldstore.NewMemory()
	acc := accumulator.New(hot, 1000)
	sc := New(hot, cold, acc)

	var coldPoints []codec.Point
	for i := 0; i < 100; i++ {
		coldPoints = append(coldPoints, codec.Point{Ts: int64(1000 * i), Val: float64(i)})
	}
	coldKey := coldstore.Key("s", 0)
	require.NoError(t, cold.Put(ctx, coldKey, codec.Encode(coldPoints)))
	require.NoError(t, hot.RecordTierPointer(ctx, "s", 0, coldKey))

	var hotPoints []codec.Point
	for i := 100; i < 200; i++ {
		hotPoints = append(hotPoints, codec.Point{Ts: int64(1000 * i), Val: float64(i)})
	}
	require.NoError(t, hot.PutData(ctx, "s", 100000, codec.Encode(hotPoints)))

	for i := 200; i < 250; i++ {
		require.NoError(t, acc.Write(ctx, sample.Sample{
			SensorID: "s", TimestampMs: int64(1000 * i), Value: float64(i), Quality: 1,
		}))
	}

	out, err := sc.Scan(ctx, "s", 0, 249000)
	require.NoError(t, err)
	require.Len(t, out, 250)

	seen := make(map[int64]bool, len(out))
	for i, smp := range out {
		assert.False(t, seen[smp.TimestampMs], "duplicate timestamp %d", smp.TimestampMs)
		seen[smp.TimestampMs] = true
		assert.Equal(t, int64(1000*i), smp.TimestampMs)
		assert.Equal(t, float64(i), smp.Value)
	}
}

// TestScanRangeInclusivity is P5: exactly the samples with
// start_ts <= ts <= end_ts are returned, ascending, no duplicates.
func TestScanRangeInclusivity(t *testing.T) {
	ctx := context.Background()
	hot := hotstore.NewMemory()
	cold := coldstore.NewMemory()
	acc := accumulator.New(hot, 1000)
	sc := New(hot, cold, acc)

	for i := 0; i < 20; i++ {
		require.NoError(t, acc.Write(ctx, sample.Sample{
			SensorID: "s", TimestampMs: int64(1000 * i), Value: float64(i), Quality: 1,
		}))
	}

	out, err := sc.Scan(ctx, "s", 3000, 3000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3000), out[0].TimestampMs)

	out, err = sc.Scan(ctx, "s", 19001, 50000)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// TestAccumulatorPrecedesHotOnSameTimestamp exercises the dedup
// precedence decided in SPEC_FULL.md §9: when the same timestamp exists
// in both hot and the accumulator (the transient double-residence window
// of a flush), the accumulator's value wins.
func TestAccumulatorPrecedesHotOnSameTimestamp(t *testing.T) {
	ctx := context.Background()
	hot := hotstore.NewMemory()
	cold := coldstore.NewMemory()
	acc := accumulator.New(hot, 1000)
	sc := New(hot, cold, acc)

	require.NoError(t, hot.PutData(ctx, "s", 1000, codec.Encode([]codec.Point{{Ts: 1000, Val: 1}})))
	require.NoError(t, acc.Write(ctx, sample.Sample{SensorID: "s", TimestampMs: 1000, Value: 99, Quality: 1}))

	out, err := sc.Scan(ctx, "s", 0, 2000)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, float64(99), out[0].Value)
}
