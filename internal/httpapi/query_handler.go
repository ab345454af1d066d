// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/inflowmetrics/historian/internal/apperror"
	"github.com/inflowmetrics/historian/internal/query"
	"github.com/inflowmetrics/historian/pkg/log"
)

// queryHandler serves the Query RPC of SPEC_FULL.md §6 as a chunked
// newline-delimited-JSON response: one Sample object per line, in
// ascending timestamp order.
type queryHandler struct {
	svc *query.Service
}

func (h *queryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sensorID, startTs, endTs := parseQueryRange(r)
	maxPoints := int(parseInt64(r.URL.Query().Get("max_points"), 0))

	ch, err := h.svc.Stream(r.Context(), query.Request{
		SensorID:  sensorID,
		StartTs:   startTs,
		EndTs:     endTs,
		MaxPoints: maxPoints,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	enc := json.NewEncoder(w)
	for smp := range ch {
		if err := enc.Encode(smp); err != nil {
			log.Warnf("httpapi: query: client write failed, aborting stream: %v", err)
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperror.KindOf(err) {
	case apperror.KindInvalidArgument:
		status = http.StatusBadRequest
	case apperror.KindNotFound:
		status = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
