// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package httpapi exposes the Query RPC and Export HTTP external
// interfaces of SPEC_FULL.md §6 on top of gorilla/mux, following the
// project's existing router/middleware idiom (CompressHandler,
// RecoveryHandler, CustomLoggingHandler). Wire-framing details of a
// full RPC protocol are out of scope; what matters is the request/
// response contract named in §6, realized here as a thin HTTP layer.
package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/inflowmetrics/historian/internal/query"
	"github.com/inflowmetrics/historian/internal/scanner"
	"github.com/inflowmetrics/historian/pkg/log"
)

// NewRouter builds the HTTP handler for both external interfaces: the
// streaming query endpoint and the CSV export endpoint.
func NewRouter(svc *query.Service, scan *scanner.Scanner) http.Handler {
	r := mux.NewRouter()
	r.Handle("/query", &queryHandler{svc: svc}).Methods(http.MethodGet)
	r.Handle("/export", &exportHandler{scan: scan}).Methods(http.MethodGet)

	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))

	return handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		log.Debugf("%s %s (%d, %.02fkb, %dms)",
			params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, float32(params.Size)/1024,
			time.Since(params.TimeStamp).Milliseconds())
	})
}

func parseQueryRange(r *http.Request) (sensorID string, startTs, endTs int64) {
	q := r.URL.Query()
	sensorID = strings.TrimSpace(q.Get("sensor_id"))
	startTs = parseInt64(q.Get("start_ts"), 0)
	endTs = parseInt64(q.Get("end_ts"), 1<<62)
	return sensorID, startTs, endTs
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return n
}
