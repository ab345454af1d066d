// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hotstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/inflowmetrics/historian/internal/sample"
)

const (
	dataPrefix = 'd'
	tierPrefix = 't'
)

// LevelDB is a Store backed by a single goleveldb database directory
// (SPEC_FULL.md §6 "hot store on-disk layout"), opened exclusively by one
// process. goleveldb has no native column-family concept, so the "data"
// and "tiering-index" namespaces of §3/§4.3 are realized as a one-byte key
// prefix within the same database, which is functionally equivalent for
// every operation this package needs (ordering, seeking, range scans).
type LevelDB struct {
	db *leveldb.DB
}

// Open opens (creating if missing) a hot store at dir, with a large
// (64 MiB) write buffer per §4.3's configuration guidance. goleveldb has
// no setting for the number of immutable memtables, so none is set.
func Open(dir string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, &opt.Options{
		WriteBuffer:            64 * opt.MiB,
		CompactionTableSize:    8 * opt.MiB,
		OpenFilesCacheCapacity: 256,
	})
	if err != nil {
		return nil, fmt.Errorf("hotstore: open %s: %w", dir, err)
	}
	return &LevelDB{db: db}, nil
}

func (s *LevelDB) Close() error { return s.db.Close() }

func namespacedKey(prefix byte, sensorID string, anchorTs int64) ([]byte, error) {
	k, err := sample.Key(sensorID, anchorTs)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(k)+1)
	out = append(out, prefix)
	out = append(out, k...)
	return out, nil
}

func namespacePrefixRange(prefix byte, sensorID string) *util.Range {
	p := make([]byte, 0, len(sensorID)+2)
	p = append(p, prefix)
	p = append(p, sensorID...)
	p = append(p, 0x00)
	return util.BytesPrefix(p)
}

func splitNamespacedKey(key []byte) (sensorID string, anchorTs int64, ok bool) {
	if len(key) < 1 {
		return "", 0, false
	}
	return sample.SplitKey(key[1:])
}

func (s *LevelDB) PutData(_ context.Context, sensorID string, anchorTs int64, payload []byte) error {
	key, err := namespacedKey(dataPrefix, sensorID, anchorTs)
	if err != nil {
		return err
	}
	return s.db.Put(key, payload, nil)
}

func (s *LevelDB) DeleteData(_ context.Context, sensorID string, anchorTs int64) error {
	key, err := namespacedKey(dataPrefix, sensorID, anchorTs)
	if err != nil {
		return err
	}
	if err := s.db.Delete(key, nil); err != nil {
		return fmt.Errorf("hotstore: delete data: %w", err)
	}
	return nil
}

// reverseSeek finds the key <= seekKey with the greatest value, within the
// iterator's range,
// mirroring RocksDB's IteratorMode::From(key, Direction::Reverse).
func reverseSeek(it iterator.Iterator, seekKey []byte) (key, value []byte, ok bool) {
	if it.Seek(seekKey) {
		if !bytes.Equal(it.Key(), seekKey) {
			if !it.Prev() {
				return nil, nil, false
			}
		}
	} else if !it.Last() {
		return nil, nil, false
	}
	return append([]byte(nil), it.Key()...), append([]byte(nil), it.Value()...), true
}

func (s *LevelDB) ReadPoint(_ context.Context, sensorID string, ts int64) (Block, bool, error) {
	seekKey, err := namespacedKey(dataPrefix, sensorID, ts)
	if err != nil {
		return Block{}, false, err
	}
	it := s.db.NewIterator(namespacePrefixRange(dataPrefix, sensorID), nil)
	defer it.Release()

	key, value, ok := reverseSeek(it, seekKey)
	if err := it.Error(); err != nil {
		return Block{}, false, fmt.Errorf("hotstore: read point: %w", err)
	}
	if !ok {
		return Block{}, false, nil
	}
	sid, anchor, valid := splitNamespacedKey(key)
	if !valid || sid != sensorID {
		return Block{}, false, nil
	}
	return Block{SensorID: sid, AnchorTs: anchor, Payload: value}, true, nil
}

func (s *LevelDB) PrecedingDataBlock(ctx context.Context, sensorID string, ts int64) (Block, bool, error) {
	return s.ReadPoint(ctx, sensorID, ts)
}

func (s *LevelDB) ScanData(_ context.Context, sensorID string, fromTs int64, yield func(Block) bool) error {
	seekKey, err := namespacedKey(dataPrefix, sensorID, fromTs)
	if err != nil {
		return err
	}
	it := s.db.NewIterator(namespacePrefixRange(dataPrefix, sensorID), nil)
	defer it.Release()

	for ok := it.Seek(seekKey); ok; ok = it.Next() {
		sid, anchor, valid := splitNamespacedKey(it.Key())
		if !valid || sid != sensorID {
			break
		}
		block := Block{SensorID: sid, AnchorTs: anchor, Payload: append([]byte(nil), it.Value()...)}
		if !yield(block) {
			break
		}
	}
	return it.Error()
}

func (s *LevelDB) IterateOld(_ context.Context, thresholdMs int64, limit int) ([]Block, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte{dataPrefix}), nil)
	defer it.Release()

	blocks := make([]Block, 0, limit)
	for it.Next() {
		sid, anchor, valid := splitNamespacedKey(it.Key())
		if !valid {
			continue
		}
		if anchor >= thresholdMs {
			continue
		}
		blocks = append(blocks, Block{SensorID: sid, AnchorTs: anchor, Payload: append([]byte(nil), it.Value()...)})
		if len(blocks) >= limit {
			break
		}
	}
	if err := it.Error(); err != nil {
		return blocks, fmt.Errorf("hotstore: iterate old: %w", err)
	}
	return blocks, nil
}

func (s *LevelDB) RecordTierPointer(_ context.Context, sensorID string, anchorTs int64, coldKey string) error {
	key, err := namespacedKey(tierPrefix, sensorID, anchorTs)
	if err != nil {
		return err
	}
	if err := s.db.Put(key, []byte(coldKey), nil); err != nil {
		return fmt.Errorf("hotstore: record tier pointer: %w", err)
	}
	return nil
}

func (s *LevelDB) LookupTierPointer(_ context.Context, sensorID string, ts int64) (TierPointer, bool, error) {
	seekKey, err := namespacedKey(tierPrefix, sensorID, ts)
	if err != nil {
		return TierPointer{}, false, err
	}
	it := s.db.NewIterator(namespacePrefixRange(tierPrefix, sensorID), nil)
	defer it.Release()

	key, value, ok := reverseSeek(it, seekKey)
	if err := it.Error(); err != nil {
		return TierPointer{}, false, fmt.Errorf("hotstore: lookup tier pointer: %w", err)
	}
	if !ok {
		return TierPointer{}, false, nil
	}
	sid, anchor, valid := splitNamespacedKey(key)
	if !valid || sid != sensorID {
		return TierPointer{}, false, nil
	}
	return TierPointer{SensorID: sid, AnchorTs: anchor, ColdKey: string(value)}, true, nil
}

func (s *LevelDB) ScanTierIndex(_ context.Context, sensorID string, fromTs int64, yield func(TierPointer) bool) error {
	seekKey, err := namespacedKey(tierPrefix, sensorID, fromTs)
	if err != nil {
		return err
	}
	it := s.db.NewIterator(namespacePrefixRange(tierPrefix, sensorID), nil)
	defer it.Release()

	for ok := it.Seek(seekKey); ok; ok = it.Next() {
		sid, anchor, valid := splitNamespacedKey(it.Key())
		if !valid || sid != sensorID {
			break
		}
		ptr := TierPointer{SensorID: sid, AnchorTs: anchor, ColdKey: string(it.Value())}
		if !yield(ptr) {
			break
		}
	}
	return it.Error()
}

var _ Store = (*LevelDB)(nil)
