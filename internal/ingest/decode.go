// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest adapts the upstream message bus to the write accumulator,
// per SPEC_FULL.md §6's ingest contract: malformed messages are logged and
// dropped, with no back-pressure signal propagated upstream.
package ingest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	influx "github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/inflowmetrics/historian/internal/sample"
)

// binaryFrameMagic is the leading byte that selects the binary sample
// framing over line-protocol in DecodeMessage. 0x00 is the one byte a
// line-protocol measurement name can never start with -- sensor_id
// forbids it too (internal/sample.ErrInvalidSensorID) -- so the two
// framings never collide.
const binaryFrameMagic = 0x00

// DecodeMessage dispatches one bus payload to the line-protocol decoder or
// the binary decoder based on its leading byte, per SPEC_FULL.md §11.
func DecodeMessage(data []byte) ([]sample.Sample, error) {
	if len(data) > 0 && data[0] == binaryFrameMagic {
		return DecodeBinaryFrames(data[1:])
	}
	return DecodeLineProtocol(data)
}

// DecodeLineProtocol decodes one or more InfluxDB line-protocol points from
// data into samples. The measurement name is the sensor_id; a field named
// "value" supplies the sample value (any numeric field type is accepted
// and converted to float64); an optional numeric field named "quality"
// supplies the quality code, defaulting to 1 when absent. Tags are parsed
// but otherwise ignored -- sensor identity lives entirely in the
// measurement name.
func DecodeLineProtocol(data []byte) ([]sample.Sample, error) {
	dec := influx.NewDecoder(bytes.NewReader(data))

	var out []sample.Sample
	for dec.Next() {
		measurement, err := dec.Measurement()
		if err != nil {
			return out, fmt.Errorf("ingest: measurement: %w", err)
		}
		sensorID := string(measurement)

		for {
			key, _, err := dec.NextTag()
			if err != nil {
				return out, fmt.Errorf("ingest: tag: %w", err)
			}
			if key == nil {
				break
			}
		}

		fields := make(map[string]influx.Value)
		for {
			key, val, err := dec.NextField()
			if err != nil {
				return out, fmt.Errorf("ingest: field: %w", err)
			}
			if key == nil {
				break
			}
			fields[string(key)] = val
		}

		value, ok := numericField(fields, "value")
		if !ok {
			return out, fmt.Errorf("ingest: %s: missing numeric field \"value\"", sensorID)
		}
		quality := uint32(1)
		if q, ok := numericField(fields, "quality"); ok {
			quality = uint32(q)
		}

		t, err := dec.Time(influx.Nanosecond, time.Time{})
		if err != nil {
			return out, fmt.Errorf("ingest: %s: time: %w", sensorID, err)
		}

		out = append(out, sample.Sample{
			SensorID:    sensorID,
			TimestampMs: t.UnixMilli(),
			Value:       value,
			Quality:     quality,
		})
	}
	if err := dec.Err(); err != nil {
		return out, fmt.Errorf("ingest: decode: %w", err)
	}
	return out, nil
}

// DecodeBinaryFrames decodes the simpler, length-prefixed binary framing
// named in SPEC_FULL.md §11 for bus payloads that are not line-protocol:
// zero or more fixed-layout records, each
//
//	uint16 BE  sensorIDLen
//	[sensorIDLen]byte  sensorID (ASCII)
//	int64  BE  timestamp_ms
//	uint64 BE  value, as IEEE-754 binary64 bits
//	uint32 BE  quality
//
// back to back with no padding or record count -- the decoder simply
// consumes records until data is exhausted. A truncated trailing record
// yields the points decoded so far together with a non-nil error.
func DecodeBinaryFrames(data []byte) ([]sample.Sample, error) {
	var out []sample.Sample
	for len(data) > 0 {
		if len(data) < 2 {
			return out, fmt.Errorf("ingest: binary frame: truncated sensor id length")
		}
		idLen := int(binary.BigEndian.Uint16(data))
		data = data[2:]

		const fixedLen = 8 + 8 + 4
		if len(data) < idLen+fixedLen {
			return out, fmt.Errorf("ingest: binary frame: truncated record")
		}
		sensorID := string(data[:idLen])
		data = data[idLen:]

		ts := int64(binary.BigEndian.Uint64(data))
		data = data[8:]
		value := math.Float64frombits(binary.BigEndian.Uint64(data))
		data = data[8:]
		quality := binary.BigEndian.Uint32(data)
		data = data[4:]

		out = append(out, sample.Sample{
			SensorID:    sensorID,
			TimestampMs: ts,
			Value:       value,
			Quality:     quality,
		})
	}
	return out, nil
}

func numericField(fields map[string]influx.Value, name string) (float64, bool) {
	v, ok := fields[name]
	if !ok {
		return 0, false
	}
	if f, ok := v.FloatV(); ok {
		return f, true
	}
	if i, ok := v.IntV(); ok {
		return float64(i), true
	}
	if u, ok := v.UintV(); ok {
		return float64(u), true
	}
	return 0, false
}
