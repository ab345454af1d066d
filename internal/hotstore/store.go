// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hotstore implements the local ordered key-value store of
// compressed blocks described in SPEC_FULL.md §4.3: two namespaces,
// "data" and "tiering-index", sharing the sensor/anchor-timestamp key
// layout from package sample.
//
// Store is an interface (SPEC_FULL.md §9, "polymorphism over storage
// backends") so the scanner, accumulator and tiering controller can run
// against a real embedded store in production and a pure in-memory one in
// tests.
package hotstore

import "context"

// Block is one raw, still-compressed block payload together with its key.
type Block struct {
	SensorID string
	AnchorTs int64
	Payload  []byte
}

// TierPointer is one entry of the tiering-index namespace.
type TierPointer struct {
	SensorID string
	AnchorTs int64
	ColdKey  string
}

// Store is the capability set the rest of the system needs from the hot
// tier: put/get/delete by exact key, forward/reverse seek, and the two
// tiering-support operations of §4.3.
type Store interface {
	// PutData writes a compressed block under (sensorID, anchorTs) in the
	// data namespace.
	PutData(ctx context.Context, sensorID string, anchorTs int64, payload []byte) error

	// DeleteData removes a block from the data namespace. It is not an
	// error to delete a key that does not exist.
	DeleteData(ctx context.Context, sensorID string, anchorTs int64) error

	// ReadPoint performs the reverse-seek point read of §4.3: the data
	// block, if any, whose anchor is the greatest anchor <= ts for sensorID.
	ReadPoint(ctx context.Context, sensorID string, ts int64) (block Block, found bool, err error)

	// PrecedingDataBlock is the same reverse-seek as ReadPoint but seeded
	// at a range's start_ts, used by the scanner to cover the "anchor <
	// start_ts but block still overlaps the range" edge case named in §4.3.
	PrecedingDataBlock(ctx context.Context, sensorID string, ts int64) (block Block, found bool, err error)

	// ScanData forward-iterates the data namespace for sensorID starting
	// at anchor >= fromTs, calling yield for each block in ascending
	// anchor order until yield returns false or the sensor prefix ends.
	ScanData(ctx context.Context, sensorID string, fromTs int64, yield func(Block) bool) error

	// IterateOld does a full forward scan of the data namespace across all
	// sensors, collecting up to limit blocks whose anchor < thresholdMs.
	IterateOld(ctx context.Context, thresholdMs int64, limit int) ([]Block, error)

	// RecordTierPointer writes a tiering-index entry.
	RecordTierPointer(ctx context.Context, sensorID string, anchorTs int64, coldKey string) error

	// LookupTierPointer is the reverse-seek point lookup into the
	// tiering-index namespace.
	LookupTierPointer(ctx context.Context, sensorID string, ts int64) (ptr TierPointer, found bool, err error)

	// ScanTierIndex forward-iterates the tiering-index namespace for
	// sensorID starting at anchor >= fromTs.
	ScanTierIndex(ctx context.Context, sensorID string, fromTs int64, yield func(TierPointer) bool) error

	Close() error
}
