// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package scanner implements the Multi-tier Scanner of SPEC_FULL.md §4.5:
// a unified, ordered, deduplicated view across the write accumulator, the
// hot store and the cold store for one sensor and time range.
package scanner

import (
	"context"
	"sort"

	"github.com/inflowmetrics/historian/internal/accumulator"
	"github.com/inflowmetrics/historian/internal/codec"
	"github.com/inflowmetrics/historian/internal/coldstore"
	"github.com/inflowmetrics/historian/internal/hotstore"
	"github.com/inflowmetrics/historian/internal/sample"
	"github.com/inflowmetrics/historian/pkg/log"
)

// streamQueueCapacity bounds the channel used by Stream, per §4.5's
// "bounded queue (capacity ~1000)".
const streamQueueCapacity = 1000

// Scanner merges the three tiers into one ordered sample sequence.
type Scanner struct {
	hot  hotstore.Store
	cold coldstore.Store
	acc  *accumulator.Accumulator
}

func New(hot hotstore.Store, cold coldstore.Store, acc *accumulator.Accumulator) *Scanner {
	return &Scanner{hot: hot, cold: cold, acc: acc}
}

// Scan is the batch form of §4.5: every sample with start_ts <= ts <=
// end_ts for sensorID, merged across all three tiers, sorted ascending
// and deduplicated by timestamp. Where the same timestamp is present in
// more than one tier, the precedence is accumulator > hot > cold, per
// the resolution of the open question in SPEC_FULL.md §9.
func (s *Scanner) Scan(ctx context.Context, sensorID string, startTs, endTs int64) ([]sample.Sample, error) {
	coldSamples, err := s.scanCold(ctx, sensorID, startTs, endTs)
	if err != nil {
		return nil, err
	}

	hotSamples, err := s.scanHot(ctx, sensorID, startTs, endTs)
	if err != nil {
		return nil, err
	}

	accSamples := s.acc.Snapshot(sensorID, startTs, endTs)

	merged := make([]sample.Sample, 0, len(coldSamples)+len(hotSamples)+len(accSamples))
	merged = append(merged, coldSamples...)
	merged = append(merged, hotSamples...)
	merged = append(merged, accSamples...)

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].TimestampMs < merged[j].TimestampMs })
	return dedupeAdjacent(merged), nil
}

// Stream is the streaming form of §4.5. It sends samples into the
// returned channel in ascending timestamp order and closes it when done.
// If the caller abandons the returned channel, cancelling ctx causes the
// producer to stop sending and return without completing the stream, per
// the cancellation rule of §5.
func (s *Scanner) Stream(ctx context.Context, sensorID string, startTs, endTs int64) (<-chan sample.Sample, <-chan error) {
	out := make(chan sample.Sample, streamQueueCapacity)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		samples, err := s.Scan(ctx, sensorID, startTs, endTs)
		if err != nil {
			errc <- err
			return
		}
		for _, smp := range samples {
			select {
			case out <- smp:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errc
}

// scanCold collects, decodes and range-filters every cold block covering
// [startTs, endTs], seeking back to the tiering-index entry preceding
// startTs so a block whose anchor is < startTs but still overlaps the
// range is not missed (SPEC_FULL.md §9, open question 1).
func (s *Scanner) scanCold(ctx context.Context, sensorID string, startTs, endTs int64) ([]sample.Sample, error) {
	seedTs := startTs
	if preceding, found, err := s.hot.LookupTierPointer(ctx, sensorID, startTs); err != nil {
		return nil, err
	} else if found {
		seedTs = preceding.AnchorTs
	}

	var pointers []hotstore.TierPointer
	err := s.hot.ScanTierIndex(ctx, sensorID, seedTs, func(p hotstore.TierPointer) bool {
		if p.AnchorTs > endTs {
			return false
		}
		pointers = append(pointers, p)
		return true
	})
	if err != nil {
		return nil, err
	}

	var out []sample.Sample
	for _, p := range pointers {
		payload, err := s.cold.Get(ctx, p.ColdKey)
		if err != nil {
			log.Warnf("scanner: cold get %s failed, returning partial result: %v", p.ColdKey, err)
			continue
		}
		points, err := codec.Decode(payload)
		if err != nil {
			log.Warnf("scanner: decode cold block %s failed: %v", p.ColdKey, err)
			continue
		}
		for _, pt := range points {
			if pt.Ts < startTs || pt.Ts > endTs {
				continue
			}
			out = append(out, sample.Sample{SensorID: sensorID, TimestampMs: pt.Ts, Value: pt.Val, Quality: 1})
		}
	}
	return out, nil
}

// scanHot mirrors scanCold against the hot store's data namespace,
// seeking back to the preceding data block for the same reason.
func (s *Scanner) scanHot(ctx context.Context, sensorID string, startTs, endTs int64) ([]sample.Sample, error) {
	seedTs := startTs
	if preceding, found, err := s.hot.PrecedingDataBlock(ctx, sensorID, startTs); err != nil {
		return nil, err
	} else if found {
		seedTs = preceding.AnchorTs
	}

	var out []sample.Sample
	err := s.hot.ScanData(ctx, sensorID, seedTs, func(b hotstore.Block) bool {
		if b.AnchorTs > endTs {
			return false
		}
		points, err := codec.Decode(b.Payload)
		if err != nil {
			log.Warnf("scanner: decode hot block %s/%d failed: %v", b.SensorID, b.AnchorTs, err)
			return true
		}
		for _, pt := range points {
			if pt.Ts < startTs || pt.Ts > endTs {
				continue
			}
			out = append(out, sample.Sample{SensorID: sensorID, TimestampMs: pt.Ts, Value: pt.Val, Quality: 1})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// dedupeAdjacent collapses runs of equal timestamps in a timestamp-sorted
// slice, keeping the last element of each run.
func dedupeAdjacent(in []sample.Sample) []sample.Sample {
	if len(in) == 0 {
		return in
	}
	out := make([]sample.Sample, 0, len(in))
	out = append(out, in[0])
	for _, smp := range in[1:] {
		if smp.TimestampMs == out[len(out)-1].TimestampMs {
			out[len(out)-1] = smp
			continue
		}
		out = append(out, smp)
	}
	return out
}
