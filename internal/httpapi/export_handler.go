// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/inflowmetrics/historian/internal/apperror"
	"github.com/inflowmetrics/historian/internal/scanner"
	"github.com/inflowmetrics/historian/pkg/log"
)

// exportHandler serves the Export HTTP interface of SPEC_FULL.md §6: a
// streamed CSV of every sample in range, un-downsampled. Rows are written
// to the response as they arrive off the scanner's stream rather than
// collected into a slice first.
type exportHandler struct {
	scan *scanner.Scanner
}

func (h *exportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sensorID, startTs, endTs := parseQueryRange(r)
	if sensorID == "" {
		writeError(w, apperror.InvalidArgument("sensor_id must not be empty"))
		return
	}

	ch, errc := h.scan.Stream(r.Context(), sensorID, startTs, endTs)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=export.csv")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	fmt.Fprint(w, "timestamp_ms,value,quality\n")
	for smp := range ch {
		fmt.Fprintf(w, "%d,%s,%d\n", smp.TimestampMs, strconv.FormatFloat(smp.Value, 'g', -1, 64), smp.Quality)
		if canFlush {
			flusher.Flush()
		}
	}

	if err := <-errc; err != nil {
		log.Warnf("httpapi: export: scan for %s failed mid-stream: %v", sensorID, err)
	}
}
