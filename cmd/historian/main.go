// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/inflowmetrics/historian/internal/accumulator"
	"github.com/inflowmetrics/historian/internal/coldstore"
	"github.com/inflowmetrics/historian/internal/config"
	"github.com/inflowmetrics/historian/internal/hotstore"
	"github.com/inflowmetrics/historian/internal/httpapi"
	"github.com/inflowmetrics/historian/internal/ingest"
	"github.com/inflowmetrics/historian/internal/query"
	"github.com/inflowmetrics/historian/internal/scanner"
	"github.com/inflowmetrics/historian/internal/tiering"
	"github.com/inflowmetrics/historian/pkg/log"
	"github.com/inflowmetrics/historian/pkg/runtimeEnv"
)

func main() {
	var flagGops bool
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Abortf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Abortf("config: %s", err.Error())
	}
	log.SetLevel(cfg.LogLevel)
	log.SetLogDateTime(cfg.LogTimestamps)

	hot, err := hotstore.Open(cfg.HotStorePath)
	if err != nil {
		log.Abortf("hot store: opening %q: %s", cfg.HotStorePath, err.Error())
	}

	acc := accumulator.New(hot, accumulator.DefaultFlushThreshold)

	var cold coldstore.Store
	if cfg.TieringShouldStart() {
		client, err := coldstore.New(cfg)
		if err != nil {
			log.Abortf("cold store: %s", err.Error())
		}
		cold = client
	} else {
		log.Info("tiering disabled or cold-store credentials incomplete, running hot-tier only")
		cold = coldstore.NewMemory()
	}

	scan := scanner.New(hot, cold, acc)
	svc := query.New(scan)

	// Task supervision: the HTTP server exiting, or SIGINT/SIGTERM,
	// closes done and shuts everything down. Ingest (a bus subscription)
	// and tiering (a scheduler job) run in the background and never close
	// done themselves; they are stopped by the shutdown goroutine.
	done := make(chan struct{})
	var once sync.Once
	trigger := func() { once.Do(func() { close(done) }) }

	var sub *ingest.Subscriber
	if cfg.BusURL != "" {
		sub, err = ingest.Connect(cfg.BusURL, cfg.BusSubject, acc)
		if err != nil {
			log.Warnf("ingest: disabled, could not connect to bus: %v", err)
		}
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPBindAddr,
		Handler:      httpapi.NewRouter(svc, scan),
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}
	listener, err := net.Listen("tcp", cfg.HTTPBindAddr)
	if err != nil {
		log.Abortf("http: listen on %s: %s", cfg.HTTPBindAddr, err.Error())
	}

	// Drop root privileges once the listening socket is bound, for
	// production deployment under systemd with a dedicated service user
	// (SPEC_FULL.md §10). A no-op when neither is configured.
	if cfg.ServiceUser != "" || cfg.ServiceGroup != "" {
		if err := runtimeEnv.DropPrivileges(cfg.ServiceUser, cfg.ServiceGroup); err != nil {
			log.Abortf("runtimeEnv: drop privileges: %s", err.Error())
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer trigger()
		log.Infof("http: listening on %s", cfg.HTTPBindAddr)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Errorf("http: serve: %v", err)
		}
	}()

	var tierCtrl *tiering.Controller
	if cfg.TieringShouldStart() {
		tierCtrl, err = tiering.New(hot, cold, cfg.TieringMaxAgeMs, cfg.TieringInterval, cfg.TieringBatchSize)
		if err != nil {
			log.Abortf("tiering: %s", err.Error())
		}
		tierCtx, cancelTiering := context.WithCancel(context.Background())
		defer cancelTiering()
		if err := tierCtrl.Start(tierCtx); err != nil {
			log.Abortf("tiering: start: %s", err.Error())
		}
		log.Infof("tiering: enabled, interval=%s max_age_ms=%d", cfg.TieringInterval, cfg.TieringMaxAgeMs)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-sigs:
		case <-done:
		}
		runtimeEnv.SystemdNotifiy(false, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warnf("http: shutdown: %v", err)
		}

		if sub != nil {
			sub.Close()
		}
		if tierCtrl != nil {
			if err := tierCtrl.Shutdown(); err != nil {
				log.Warnf("tiering: shutdown: %v", err)
			}
		}

		if err := acc.FlushAll(context.Background()); err != nil {
			log.Warnf("accumulator: flush on shutdown: %v", err)
		}
		if err := hot.Close(); err != nil {
			log.Warnf("hot store: close: %v", err)
		}

		trigger()
	}()

	runtimeEnv.SystemdNotifiy(true, "running")
	wg.Wait()
	log.Info("historian: shutdown complete")
}
