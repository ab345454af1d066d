// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ingest

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/inflowmetrics/historian/internal/accumulator"
	"github.com/inflowmetrics/historian/internal/metrics"
	"github.com/inflowmetrics/historian/pkg/log"
)

// Subscriber feeds decoded samples from the message bus into the write
// accumulator, using the project's established NATS connection idiom
// (reconnect/error handlers, queue-group load balancing).
type Subscriber struct {
	conn *nats.Conn
	sub  *nats.Subscription
	acc  *accumulator.Accumulator
}

// Connect dials busURL and queue-subscribes to subject so that, if the
// process is ever run with multiple replicas, each sample is delivered to
// exactly one of them.
func Connect(busURL, subject string, acc *accumulator.Accumulator) (*Subscriber, error) {
	if busURL == "" {
		return nil, fmt.Errorf("ingest: bus URL is required")
	}

	conn, err := nats.Connect(busURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("ingest: bus disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("ingest: bus reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Errorf("ingest: bus error: %v", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("ingest: connect to %s: %w", busURL, err)
	}

	s := &Subscriber{conn: conn, acc: acc}
	sub, err := conn.QueueSubscribe(subject, "historian-ingest", s.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ingest: subscribe to %s: %w", subject, err)
	}
	s.sub = sub

	log.Infof("ingest: subscribed to %s on %s", subject, busURL)
	return s, nil
}

func (s *Subscriber) handle(msg *nats.Msg) {
	if err := processMessage(context.Background(), s.acc, msg.Data); err != nil {
		log.Warnf("ingest: dropping message on %s: %v", msg.Subject, err)
	}
}

// processMessage decodes one bus message and writes every sample it
// contains to acc. It is split out from handle so it can be exercised
// without a live bus connection.
func processMessage(ctx context.Context, acc *accumulator.Accumulator, data []byte) error {
	samples, err := DecodeMessage(data)
	if err != nil {
		metrics.IngestDecodeErrorsTotal.WithLabelValues("decode").Inc()
		return err
	}

	for _, smp := range samples {
		if err := acc.Write(ctx, smp); err != nil {
			metrics.IngestDecodeErrorsTotal.WithLabelValues("write").Inc()
			log.Errorf("ingest: write %s failed: %v", smp.SensorID, err)
		}
	}
	return nil
}

// Close unsubscribes and closes the bus connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			log.Warnf("ingest: unsubscribe failed: %v", err)
		}
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
