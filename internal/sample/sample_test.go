// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sample

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// P2: for a fixed sensor_id and ts1 < ts2, Key(sensor_id, ts1) < Key(sensor_id, ts2).
func TestKeyOrdersByTimestampWithinSensor(t *testing.T) {
	tests := []struct {
		name     string
		ts1, ts2 int64
	}{
		{"adjacent small values", 100, 101},
		{"zero and positive", 0, 1},
		{"adjacent large values", 1_700_000_000_000, 1_700_000_000_001},
		{"millisecond epoch range", 0, 1_900_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1, err := Key("sensor.a.b", tt.ts1)
			require.NoError(t, err)
			k2, err := Key("sensor.a.b", tt.ts2)
			require.NoError(t, err)
			assert.Negative(t, bytes.Compare(k1, k2))
		})
	}
}

// P2: for id1 < id2 (lexicographic) and any ts1, ts2, Key(id1, ts1) < Key(id2, ts2).
func TestKeyOrdersBySensorBeforeTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		id1, id2 string
		ts1, ts2 int64
	}{
		{"lexicographic ids, descending timestamps", "sensor.a", "sensor.b", 1_000_000, 0},
		{"prefix id sorts before its own extension", "sensor", "sensor.sub", 999_999_999, 0},
		{"empty vs non-empty id", "", "sensor.a", 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k1, err := Key(tt.id1, tt.ts1)
			require.NoError(t, err)
			k2, err := Key(tt.id2, tt.ts2)
			require.NoError(t, err)
			assert.Negative(t, bytes.Compare(k1, k2))
		})
	}
}

func TestKeyRejectsSensorIDContainingZeroByte(t *testing.T) {
	_, err := Key("bad\x00id", 0)
	assert.ErrorIs(t, err, ErrInvalidSensorID)
}

func TestSplitKeyRoundTrip(t *testing.T) {
	key, err := Key("sensor.a.b", 123456)
	require.NoError(t, err)

	id, ts, ok := SplitKey(key)
	require.True(t, ok)
	assert.Equal(t, "sensor.a.b", id)
	assert.Equal(t, int64(123456), ts)
}

func TestSplitKeyRejectsTooShort(t *testing.T) {
	_, _, ok := SplitKey([]byte{0x00, 0x01})
	assert.False(t, ok)
}

func TestHasSensorPrefix(t *testing.T) {
	key, err := Key("sensor.a", 1)
	require.NoError(t, err)

	assert.True(t, HasSensorPrefix(key, "sensor.a"))
	assert.False(t, HasSensorPrefix(key, "sensor.b"))
	assert.False(t, HasSensorPrefix(key, "sensor"))
}
