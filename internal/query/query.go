// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package query implements the Query Service of SPEC_FULL.md §4.7:
// request validation, the downsampling gate, and streaming result
// delivery on top of the multi-tier scanner.
package query

import (
	"context"
	"time"

	"github.com/inflowmetrics/historian/internal/apperror"
	"github.com/inflowmetrics/historian/internal/downsample"
	"github.com/inflowmetrics/historian/internal/metrics"
	"github.com/inflowmetrics/historian/internal/sample"
	"github.com/inflowmetrics/historian/internal/scanner"
)

// DefaultMaxPoints is max_points' default value per §4.7.
const DefaultMaxPoints = 1000

// Request is {sensor_id, start_ts, end_ts, max_points?} from §4.7.
// MaxPoints of 0 means "use DefaultMaxPoints".
type Request struct {
	SensorID  string
	StartTs   int64
	EndTs     int64
	MaxPoints int
}

// Service validates requests, runs the scan, and applies the downsampler
// when the scan result exceeds the requested point budget.
type Service struct {
	scan *scanner.Scanner
}

func New(scan *scanner.Scanner) *Service {
	return &Service{scan: scan}
}

// Query executes req and returns the (possibly downsampled) result.
//
// An empty sensor_id is reported as apperror.InvalidArgument. A scan that
// returns no samples is reported as apperror.NotFound — the documented
// imprecision of SPEC_FULL.md §9: this system has no sensor catalog, so
// "unknown sensor" and "no data in range" are indistinguishable here.
func (s *Service) Query(ctx context.Context, req Request) ([]sample.Sample, error) {
	if req.SensorID == "" {
		return nil, apperror.InvalidArgument("sensor_id must not be empty")
	}

	maxPoints := req.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}

	start := time.Now()
	result, err := s.scan.Scan(ctx, req.SensorID, req.StartTs, req.EndTs)
	metrics.ScanLatencySeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperror.Internal("scan failed", err)
	}

	if len(result) == 0 {
		return nil, apperror.NotFound("no data for sensor in range")
	}

	if len(result) > maxPoints {
		result = downsample.LTTB(result, maxPoints)
	}
	return result, nil
}

// Stream is the streaming counterpart of Query. Validation and the empty-
// result NotFound behavior are identical; downsampling is applied to the
// fully collected scan result before any sample is sent, since the target
// point budget cannot be honored incrementally.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan sample.Sample, error) {
	result, err := s.Query(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan sample.Sample, len(result))
	go func() {
		defer close(out)
		for _, smp := range result {
			select {
			case out <- smp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
