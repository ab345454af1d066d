// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tiering implements the Tiering Controller of SPEC_FULL.md §4.4:
// a periodic task, scheduled with the project's own gocron idiom, that
// migrates aged hot blocks to the cold store in the crash-safe order
// upload -> record pointer -> delete hot.
package tiering

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/inflowmetrics/historian/internal/coldstore"
	"github.com/inflowmetrics/historian/internal/hotstore"
	"github.com/inflowmetrics/historian/internal/metrics"
	"github.com/inflowmetrics/historian/pkg/log"
)

// DefaultBatchSize is the default number of blocks migrated per tiering
// pass, per §4.4.
const DefaultBatchSize = 100

// Controller runs tiering passes on a fixed interval.
type Controller struct {
	hot  hotstore.Store
	cold coldstore.Store

	maxAgeMs  int64
	interval  time.Duration
	batchSize int

	sched gocron.Scheduler
}

func New(hot hotstore.Store, cold coldstore.Store, maxAgeMs int64, interval time.Duration, batchSize int) (*Controller, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Controller{
		hot:       hot,
		cold:      cold,
		maxAgeMs:  maxAgeMs,
		interval:  interval,
		batchSize: batchSize,
		sched:     sched,
	}, nil
}

// Start registers the periodic tiering job and starts the scheduler. It
// does not block.
func (c *Controller) Start(ctx context.Context) error {
	_, err := c.sched.NewJob(
		gocron.DurationJob(c.interval),
		gocron.NewTask(func() { c.RunPass(ctx) }),
	)
	if err != nil {
		return err
	}
	c.sched.Start()
	return nil
}

func (c *Controller) Shutdown() error {
	return c.sched.Shutdown()
}

// RunPass executes one tiering pass (§4.4 steps 1-3) and returns the
// number of blocks fully migrated (upload + record + delete all
// succeeded).
func (c *Controller) RunPass(ctx context.Context) int {
	threshold := nowMs() - c.maxAgeMs

	blocks, err := c.hot.IterateOld(ctx, threshold, c.batchSize)
	if err != nil {
		log.Errorf("tiering: iterate old blocks: %v", err)
		return 0
	}

	migrated := 0
	for _, b := range blocks {
		if c.migrateOne(ctx, b) {
			migrated++
		}
	}
	return migrated
}

// migrateOne runs the upload -> record -> delete sequence for a single
// block, stopping at the first failed stage per §4.4's state machine. A
// crash or failure at any step leaves the block reachable: either still in
// hot (upload/record failed) or in both tiers with a live pointer (delete
// failed), never lost.
func (c *Controller) migrateOne(ctx context.Context, b hotstore.Block) bool {
	key := coldstore.Key(b.SensorID, b.AnchorTs)

	if err := c.cold.Put(ctx, key, b.Payload); err != nil {
		metrics.TieringUploadTotal.WithLabelValues("error").Inc()
		log.Warnf("tiering: upload %s/%d failed, will retry next pass: %v", b.SensorID, b.AnchorTs, err)
		return false
	}
	metrics.TieringUploadTotal.WithLabelValues("ok").Inc()

	if err := c.hot.RecordTierPointer(ctx, b.SensorID, b.AnchorTs, key); err != nil {
		metrics.TieringRecordTotal.WithLabelValues("error").Inc()
		log.Warnf("tiering: record pointer %s/%d failed, hot block retained: %v", b.SensorID, b.AnchorTs, err)
		return false
	}
	metrics.TieringRecordTotal.WithLabelValues("ok").Inc()

	if err := c.hot.DeleteData(ctx, b.SensorID, b.AnchorTs); err != nil {
		metrics.TieringDeleteTotal.WithLabelValues("error").Inc()
		log.Warnf("tiering: delete hot %s/%d failed, block now resides in both tiers: %v", b.SensorID, b.AnchorTs, err)
		return false
	}
	metrics.TieringDeleteTotal.WithLabelValues("ok").Inc()

	return true
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
