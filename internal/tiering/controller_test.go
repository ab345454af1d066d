// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tiering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inflowmetrics/historian/internal/codec"
	"github.com/inflowmetrics/historian/internal/coldstore"
	"github.com/inflowmetrics/historian/internal/hotstore"
)

// TestTieringBasic is scenario 3 of spec.md §8.
func TestTieringBasic(t *testing.T) {
	ctx := context.Background()
	hot := hotstore.NewMemory()
	cold := coldstore.NewMemory()

	payload := codec.Encode([]codec.Point{{Ts: 1000, Val: 42}})
	require.NoError(t, hot.PutData(ctx, "s", 1000, payload))

	c, err := New(hot, cold, 0, 0, 1) // interval unused by RunPass directly
	require.NoError(t, err)

	migrated := c.RunPass(ctx)
	assert.Equal(t, 1, migrated)

	blocks, err := hot.IterateOld(ctx, 1<<62, 10)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	ptr, found, err := hot.LookupTierPointer(ctx, "s", 1000)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "s/1000.bin", ptr.ColdKey)

	obj, err := cold.Get(ctx, "s/1000.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, obj)
}

// failingRecordHot fails RecordTierPointer once (when failRecordOnce is
// set), then delegates to the wrapped store, to simulate scenario 4 of
// spec.md §8: crash between upload and pointer.
type failingRecordHot struct {
	hotstore.Store
	failRecordOnce bool
	failed         bool
}

func (f *failingRecordHot) RecordTierPointer(ctx context.Context, sensorID string, anchorTs int64, coldKey string) error {
	if f.failRecordOnce && !f.failed {
		f.failed = true
		return assertErr
	}
	return f.Store.RecordTierPointer(ctx, sensorID, anchorTs, coldKey)
}

var assertErr = assertError("simulated pointer-write failure")

type assertError string

func (e assertError) Error() string { return string(e) }

// TestCrashBetweenUploadAndPointer is scenario 4 of spec.md §8.
func TestCrashBetweenUploadAndPointer(t *testing.T) {
	ctx := context.Background()
	baseHot := hotstore.NewMemory()
	cold := coldstore.NewMemory()
	hot := &failingRecordHot{Store: baseHot, failRecordOnce: true}

	payload := codec.Encode([]codec.Point{{Ts: 1000, Val: 42}})
	require.NoError(t, hot.PutData(ctx, "s", 1000, payload))

	c, err := New(hot, cold, 0, 0, 1)
	require.NoError(t, err)

	migrated := c.RunPass(ctx)
	assert.Equal(t, 0, migrated)

	// Hot block still present; query (here, a direct read) still returns
	// correct data.
	blocks, err := hot.IterateOld(ctx, 1<<62, 10)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, payload, blocks[0].Payload)

	// Next pass succeeds: cold key is deterministic, the re-PUT is idempotent.
	migrated = c.RunPass(ctx)
	assert.Equal(t, 1, migrated)

	blocks, err = hot.IterateOld(ctx, 1<<62, 10)
	require.NoError(t, err)
	assert.Empty(t, blocks)
}
