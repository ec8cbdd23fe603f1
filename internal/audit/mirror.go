// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/oops"
)

// Sink receives a copy of every recorded entry.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
	Close() error
}

// mirror forwards entries to a Sink from a single consumer goroutine.
type mirror struct {
	sink      Sink
	logger    *slog.Logger
	asyncChan chan Entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

func (m *mirror) start() {
	m.wg.Add(1)
	go m.consume()
}

// enqueue never blocks; a full queue drops the mirror copy.
func (m *mirror) enqueue(entry Entry) {
	select {
	case m.asyncChan <- entry:
	default:
		mirrorDroppedCounter.Inc()
	}
}

func (m *mirror) consume() {
	defer m.wg.Done()

	for {
		select {
		case entry := <-m.asyncChan:
			m.write(entry)
		case <-m.stopChan:
			m.drain()
			return
		}
	}
}

func (m *mirror) drain() {
	for {
		select {
		case entry := <-m.asyncChan:
			m.write(entry)
		default:
			return
		}
	}
}

func (m *mirror) write(entry Entry) {
	if err := m.sink.Write(context.Background(), entry); err != nil {
		m.logger.Error("audit mirror write failed",
			"error", err,
			"entry_id", entry.ID.String(),
			"action", entry.Action,
		)
		mirrorFailuresCounter.WithLabelValues("write").Inc()
	}
}

func (m *mirror) stop() error {
	close(m.stopChan)
	m.wg.Wait()

	if err := m.sink.Close(); err != nil {
		mirrorFailuresCounter.WithLabelValues("close").Inc()
		return oops.Code("AUDIT_SINK_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
