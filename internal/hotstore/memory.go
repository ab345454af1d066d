// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hotstore

import (
	"context"
	"sort"
	"sync"
)

type memKey struct {
	sensorID string
	anchorTs int64
}

// Memory is a pure in-memory Store implementation, used by package tests
// in place of the real LevelDB-backed store (SPEC_FULL.md §9).
type Memory struct {
	mu   sync.RWMutex
	data map[memKey][]byte
	tier map[memKey]string
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[memKey][]byte),
		tier: make(map[memKey]string),
	}
}

func sortedKeys(m map[memKey][]byte, sensorID string) []memKey {
	keys := make([]memKey, 0, len(m))
	for k := range m {
		if k.sensorID == sensorID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].anchorTs < keys[j].anchorTs })
	return keys
}

func sortedTierKeys(m map[memKey]string, sensorID string) []memKey {
	keys := make([]memKey, 0, len(m))
	for k := range m {
		if k.sensorID == sensorID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].anchorTs < keys[j].anchorTs })
	return keys
}

func (s *Memory) PutData(_ context.Context, sensorID string, anchorTs int64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[memKey{sensorID, anchorTs}] = append([]byte(nil), payload...)
	return nil
}

func (s *Memory) DeleteData(_ context.Context, sensorID string, anchorTs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, memKey{sensorID, anchorTs})
	return nil
}

func (s *Memory) ReadPoint(_ context.Context, sensorID string, ts int64) (Block, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := sortedKeys(s.data, sensorID)
	var best *memKey
	for i := range keys {
		if keys[i].anchorTs <= ts {
			best = &keys[i]
		} else {
			break
		}
	}
	if best == nil {
		return Block{}, false, nil
	}
	return Block{SensorID: sensorID, AnchorTs: best.anchorTs, Payload: s.data[*best]}, true, nil
}

func (s *Memory) PrecedingDataBlock(ctx context.Context, sensorID string, ts int64) (Block, bool, error) {
	return s.ReadPoint(ctx, sensorID, ts)
}

func (s *Memory) ScanData(_ context.Context, sensorID string, fromTs int64, yield func(Block) bool) error {
	s.mu.RLock()
	keys := sortedKeys(s.data, sensorID)
	blocks := make([]Block, 0, len(keys))
	for _, k := range keys {
		if k.anchorTs < fromTs {
			continue
		}
		blocks = append(blocks, Block{SensorID: sensorID, AnchorTs: k.anchorTs, Payload: s.data[k]})
	}
	s.mu.RUnlock()

	for _, b := range blocks {
		if !yield(b) {
			break
		}
	}
	return nil
}

func (s *Memory) IterateOld(_ context.Context, thresholdMs int64, limit int) ([]Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		k memKey
		v []byte
	}
	all := make([]entry, 0, len(s.data))
	for k, v := range s.data {
		if k.anchorTs < thresholdMs {
			all = append(all, entry{k, v})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].k.sensorID != all[j].k.sensorID {
			return all[i].k.sensorID < all[j].k.sensorID
		}
		return all[i].k.anchorTs < all[j].k.anchorTs
	})
	if len(all) > limit {
		all = all[:limit]
	}
	blocks := make([]Block, len(all))
	for i, e := range all {
		blocks[i] = Block{SensorID: e.k.sensorID, AnchorTs: e.k.anchorTs, Payload: e.v}
	}
	return blocks, nil
}

func (s *Memory) RecordTierPointer(_ context.Context, sensorID string, anchorTs int64, coldKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tier[memKey{sensorID, anchorTs}] = coldKey
	return nil
}

func (s *Memory) LookupTierPointer(_ context.Context, sensorID string, ts int64) (TierPointer, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := sortedTierKeys(s.tier, sensorID)
	var best *memKey
	for i := range keys {
		if keys[i].anchorTs <= ts {
			best = &keys[i]
		} else {
			break
		}
	}
	if best == nil {
		return TierPointer{}, false, nil
	}
	return TierPointer{SensorID: sensorID, AnchorTs: best.anchorTs, ColdKey: s.tier[*best]}, true, nil
}

func (s *Memory) ScanTierIndex(_ context.Context, sensorID string, fromTs int64, yield func(TierPointer) bool) error {
	s.mu.RLock()
	keys := sortedTierKeys(s.tier, sensorID)
	ptrs := make([]TierPointer, 0, len(keys))
	for _, k := range keys {
		if k.anchorTs < fromTs {
			continue
		}
		ptrs = append(ptrs, TierPointer{SensorID: sensorID, AnchorTs: k.anchorTs, ColdKey: s.tier[k]})
	}
	s.mu.RUnlock()

	for _, p := range ptrs {
		if !yield(p) {
			break
		}
	}
	return nil
}

func (s *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
