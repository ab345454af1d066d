// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec implements the Gorilla-style block compression used by
// the hot store: delta-of-delta bit-packed timestamps and XOR-compressed
// floating point values. See Pelkonen et al., "Gorilla: A Fast, Scalable,
// In-Memory Time Series Database" for the underlying scheme; this
// implementation widens the leading-zero-count field from the paper's 5
// bits to 6 bits (the meaningful-bit-length field stays 6 bits, stored as
// length-1) so arbitrary (non-metric-like) float64 inputs still
// round-trip exactly rather than only "typical" ones.
package codec

import (
	"encoding/binary"
	"math"
	"math/bits"
)

// Point is a single (timestamp, value) pair. Quality is not part of the
// block format; the write accumulator strips it before handing samples to
// the codec, and readers reconstruct quality as 1 (see DESIGN.md).
type Point struct {
	Ts  int64
	Val float64
}

// Encode compresses an ordered sequence of points into a byte vector.
// Encode(nil or empty) returns an empty (non-nil-length-zero) slice.
func Encode(points []Point) []byte {
	if len(points) == 0 {
		return []byte{}
	}

	hdr := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(hdr, uint64(len(points)))
	hdr = hdr[:n]

	bw := newBitWriter()
	bw.writeBits(uint64(points[0].Ts), 64)
	bw.writeBits(math.Float64bits(points[0].Val), 64)

	prevTs := points[0].Ts
	prevDelta := int64(0)
	prevValBits := math.Float64bits(points[0].Val)
	var window xorWindow

	for i := 1; i < len(points); i++ {
		ts := points[i].Ts
		delta := ts - prevTs
		encodeDod(bw, delta-prevDelta)
		prevDelta = delta
		prevTs = ts

		curBits := math.Float64bits(points[i].Val)
		encodeValueXOR(bw, prevValBits, curBits, &window)
		prevValBits = curBits
	}

	return append(hdr, bw.bytes()...)
}

// Decode decompresses a byte vector produced by Encode back into points.
// On corrupt input it returns as many valid leading points as could be
// recovered together with a non-nil error; it never panics on truncated
// or malformed data.
func Decode(data []byte) ([]Point, error) {
	if len(data) == 0 {
		return nil, nil
	}

	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, ErrTruncated
	}
	if count == 0 {
		return nil, nil
	}

	br := newBitReader(data[n:])
	// Every point after the first takes at least 2 bits, so a count larger
	// than that bound can only come from a corrupt header; cap the
	// preallocation so it cannot fail.
	capHint := count
	if maxPoints := uint64(len(data))*4 + 1; capHint > maxPoints {
		capHint = maxPoints
	}
	points := make([]Point, 0, capHint)

	ts0, err := br.readBits(64)
	if err != nil {
		return points, err
	}
	val0, err := br.readBits(64)
	if err != nil {
		return points, err
	}
	points = append(points, Point{Ts: int64(ts0), Val: math.Float64frombits(val0)})
	if count == 1 {
		return points, nil
	}

	prevTs := int64(ts0)
	prevDelta := int64(0)
	prevValBits := val0
	var window xorWindow

	for i := uint64(1); i < count; i++ {
		dod, err := decodeDod(br)
		if err != nil {
			return points, err
		}
		delta := prevDelta + dod
		ts := prevTs + delta

		valBits, err := decodeValueXOR(br, prevValBits, &window)
		if err != nil {
			return points, err
		}

		points = append(points, Point{Ts: ts, Val: math.Float64frombits(valBits)})
		prevDelta = delta
		prevTs = ts
		prevValBits = valBits
	}

	return points, nil
}

// encodeDod writes a delta-of-delta using variable-width buckets, the
// narrowest one that fits, with the widest bucket falling back to a raw
// 64-bit value so any int64 delta-of-delta is representable.
func encodeDod(bw *bitWriter, dod int64) {
	switch {
	case dod == 0:
		bw.writeBit(false)
	case dod >= -64 && dod <= 63:
		bw.writeBits(0b10, 2)
		bw.writeBits(uint64(dod)&0x7F, 7)
	case dod >= -256 && dod <= 255:
		bw.writeBits(0b110, 3)
		bw.writeBits(uint64(dod)&0x1FF, 9)
	case dod >= -2048 && dod <= 2047:
		bw.writeBits(0b1110, 4)
		bw.writeBits(uint64(dod)&0xFFF, 12)
	case dod >= -131072 && dod <= 131071:
		bw.writeBits(0b11110, 5)
		bw.writeBits(uint64(dod)&0x3FFFF, 18)
	default:
		bw.writeBits(0b11111, 5)
		bw.writeBits(uint64(dod), 64)
	}
}

func decodeDod(br *bitReader) (int64, error) {
	b, err := br.readBit()
	if err != nil {
		return 0, err
	}
	if !b {
		return 0, nil
	}
	b, err = br.readBit()
	if err != nil {
		return 0, err
	}
	if !b {
		v, err := br.readBits(7)
		return signExtend(v, 7), err
	}
	b, err = br.readBit()
	if err != nil {
		return 0, err
	}
	if !b {
		v, err := br.readBits(9)
		return signExtend(v, 9), err
	}
	b, err = br.readBit()
	if err != nil {
		return 0, err
	}
	if !b {
		v, err := br.readBits(12)
		return signExtend(v, 12), err
	}
	b, err = br.readBit()
	if err != nil {
		return 0, err
	}
	if !b {
		v, err := br.readBits(18)
		return signExtend(v, 18), err
	}
	v, err := br.readBits(64)
	return int64(v), err
}

func signExtend(v uint64, width uint) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

// xorWindow tracks the leading/trailing zero-count window of the previous
// "new window" XOR, as in the Gorilla value compression scheme.
type xorWindow struct {
	leading, trailing int
	valid             bool
}

func encodeValueXOR(bw *bitWriter, prevBits, curBits uint64, w *xorWindow) {
	xor := prevBits ^ curBits
	if xor == 0 {
		bw.writeBit(false)
		return
	}
	bw.writeBit(true)

	leading := bits.LeadingZeros64(xor)
	trailing := bits.TrailingZeros64(xor)

	if w.valid && leading >= w.leading && trailing >= w.trailing {
		bw.writeBit(false)
		meaningful := 64 - w.leading - w.trailing
		bw.writeBits(xor>>uint(w.trailing), uint(meaningful))
		return
	}

	bw.writeBit(true)
	meaningful := 64 - leading - trailing
	bw.writeBits(uint64(leading), 6)
	bw.writeBits(uint64(meaningful-1), 6)
	bw.writeBits(xor>>uint(trailing), uint(meaningful))
	w.leading, w.trailing, w.valid = leading, trailing, true
}

func decodeValueXOR(br *bitReader, prevBits uint64, w *xorWindow) (uint64, error) {
	b, err := br.readBit()
	if err != nil {
		return 0, err
	}
	if !b {
		return prevBits, nil
	}

	b, err = br.readBit()
	if err != nil {
		return 0, err
	}
	if !b {
		if !w.valid {
			return 0, ErrTruncated
		}
		meaningful := 64 - w.leading - w.trailing
		v, err := br.readBits(uint(meaningful))
		if err != nil {
			return 0, err
		}
		return prevBits ^ (v << uint(w.trailing)), nil
	}

	leading, err := br.readBits(6)
	if err != nil {
		return 0, err
	}
	meaningfulMinus1, err := br.readBits(6)
	if err != nil {
		return 0, err
	}
	meaningful := int(meaningfulMinus1) + 1
	trailing := 64 - int(leading) - meaningful
	if trailing < 0 {
		return 0, ErrTruncated
	}
	v, err := br.readBits(uint(meaningful))
	if err != nil {
		return 0, err
	}
	w.leading, w.trailing, w.valid = int(leading), trailing, true
	return prevBits ^ (v << uint(trailing)), nil
}
