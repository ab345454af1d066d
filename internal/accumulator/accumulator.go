// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package accumulator implements the per-sensor in-memory write buffer of
// SPEC_FULL.md §4.2: samples are appended under a per-sensor lock and
// flushed to the hot store once a sensor's buffer reaches capacity, with
// compression and disk I/O happening outside the lock so that writes to
// other sensors are never blocked by one sensor's flush.
package accumulator

import (
	"context"
	"sync"

	"github.com/inflowmetrics/historian/internal/codec"
	"github.com/inflowmetrics/historian/internal/hotstore"
	"github.com/inflowmetrics/historian/internal/sample"
	"github.com/inflowmetrics/historian/pkg/log"
)

// DefaultFlushThreshold is N from §3 ("the accumulator flushes at N=1000
// samples").
const DefaultFlushThreshold = 1000

type bucket struct {
	mu   sync.Mutex
	data []codec.Point
}

// Accumulator is the concurrent hash map of per-sensor buffers named in
// §4.2, with fine-grained per-key locking so concurrent writers to
// different sensors never contend.
type Accumulator struct {
	threshold int
	store     hotstore.Store

	mu      sync.RWMutex
	buckets map[string]*bucket
}

func New(store hotstore.Store, threshold int) *Accumulator {
	if threshold <= 0 {
		threshold = DefaultFlushThreshold
	}
	return &Accumulator{
		threshold: threshold,
		store:     store,
		buckets:   make(map[string]*bucket),
	}
}

func (a *Accumulator) bucketFor(sensorID string) *bucket {
	a.mu.RLock()
	b, ok := a.buckets[sensorID]
	a.mu.RUnlock()
	if ok {
		return b
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok = a.buckets[sensorID]; ok {
		return b
	}
	b = &bucket{data: make([]codec.Point, 0, a.threshold)}
	a.buckets[sensorID] = b
	return b
}

// Write appends one sample to its sensor's buffer, dropping the quality
// field at this boundary per §4.2, and flushes the buffer to a hot block
// if it has reached the configured threshold.
//
// The lock is held only across the append and the "take" of a full
// buffer's contents; the compression and hot-store write that follow a
// flush run outside the lock.
func (a *Accumulator) Write(ctx context.Context, s sample.Sample) error {
	b := a.bucketFor(s.SensorID)

	b.mu.Lock()
	b.data = append(b.data, codec.Point{Ts: s.TimestampMs, Val: s.Value})
	var flushed []codec.Point
	if len(b.data) >= a.threshold {
		flushed = b.data
		b.data = make([]codec.Point, 0, a.threshold)
	}
	b.mu.Unlock()

	if flushed == nil {
		return nil
	}
	return a.flush(ctx, s.SensorID, flushed)
}

func (a *Accumulator) flush(ctx context.Context, sensorID string, points []codec.Point) error {
	payload := codec.Encode(points)
	anchor := points[0].Ts
	if err := a.store.PutData(ctx, sensorID, anchor, payload); err != nil {
		log.Errorf("accumulator: flush %s anchor=%d: %v", sensorID, anchor, err)
		return err
	}
	return nil
}

// Snapshot returns a copy of the samples currently buffered in memory for
// sensorID with timestamps in [startTs, endTs], for use by the multi-tier
// scanner. Quality is not tracked in the accumulator (it was dropped on
// Write), so returned samples carry Quality 1.
func (a *Accumulator) Snapshot(sensorID string, startTs, endTs int64) []sample.Sample {
	a.mu.RLock()
	b, ok := a.buckets[sensorID]
	a.mu.RUnlock()
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]sample.Sample, 0, len(b.data))
	for _, p := range b.data {
		if p.Ts < startTs || p.Ts > endTs {
			continue
		}
		out = append(out, sample.Sample{SensorID: sensorID, TimestampMs: p.Ts, Value: p.Val, Quality: 1})
	}
	return out
}

// Flush forces a flush of sensorID's current buffer regardless of
// threshold, used at shutdown so buffered-but-unflushed samples are not
// lost. It is a no-op if the buffer is empty.
func (a *Accumulator) Flush(ctx context.Context, sensorID string) error {
	b := a.bucketFor(sensorID)

	b.mu.Lock()
	if len(b.data) == 0 {
		b.mu.Unlock()
		return nil
	}
	flushed := b.data
	b.data = make([]codec.Point, 0, a.threshold)
	b.mu.Unlock()

	return a.flush(ctx, sensorID, flushed)
}

// FlushAll forces a flush of every sensor currently tracked.
func (a *Accumulator) FlushAll(ctx context.Context) error {
	a.mu.RLock()
	sensors := make([]string, 0, len(a.buckets))
	for id := range a.buckets {
		sensors = append(sensors, id)
	}
	a.mu.RUnlock()

	var firstErr error
	for _, id := range sensors {
		if err := a.Flush(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
