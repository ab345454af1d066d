// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inflowmetrics/historian/internal/accumulator"
	"github.com/inflowmetrics/historian/internal/coldstore"
	"github.com/inflowmetrics/historian/internal/hotstore"
	"github.com/inflowmetrics/historian/internal/query"
	"github.com/inflowmetrics/historian/internal/sample"
	"github.com/inflowmetrics/historian/internal/scanner"
)

func newTestRouter(t *testing.T) (http.Handler, *accumulator.Accumulator) {
	t.Helper()
	hot := hotstore.NewMemory()
	cold := coldstore.NewMemory()
	acc := accumulator.New(hot, 1000)
	sc := scanner.New(hot, cold, acc)
	svc := query.New(sc)
	return NewRouter(svc, sc), acc
}

func TestQueryEndpointStreamsNDJSON(t *testing.T) {
	router, acc := newTestRouter(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, acc.Write(ctx, sample.Sample{
			SensorID: "s", TimestampMs: int64(1000 * i), Value: float64(i), Quality: 1,
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/query?sensor_id=s&start_ts=0&end_ts=4000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var lines []sample.Sample
	scan := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scan.Scan() {
		var smp sample.Sample
		require.NoError(t, json.Unmarshal(scan.Bytes(), &smp))
		lines = append(lines, smp)
	}
	require.Len(t, lines, 5)
	assert.Equal(t, int64(0), lines[0].TimestampMs)
}

func TestQueryEndpointEmptySensorIDIsBadRequest(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/query?start_ts=0&end_ts=1000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryEndpointNoDataIsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/query?sensor_id=unknown&start_ts=0&end_ts=1000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportEndpointStreamsCSV(t *testing.T) {
	router, acc := newTestRouter(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, acc.Write(ctx, sample.Sample{
			SensorID: "s", TimestampMs: int64(1000 * i), Value: float64(i) + 0.5, Quality: 1,
		}))
	}

	req := httptest.NewRequest(http.MethodGet, "/export?sensor_id=s&start_ts=0&end_ts=2000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=export.csv", rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "timestamp_ms,value,quality", lines[0])
	assert.Equal(t, "0,0.5,1", lines[1])
	assert.Equal(t, "1000,1.5,1", lines[2])
	assert.Equal(t, "2000,2.5,1", lines[3])
}

func TestExportEndpointEmptySensorIDIsBadRequest(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/export?start_ts=0&end_ts=1000", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
