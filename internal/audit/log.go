// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orderdesk/orderdesk/internal/idgen"
)

// Log sizing defaults.
const (
	DefaultCapacity    = 5000
	DefaultListLimit   = 200
	DefaultMirrorQueue = 1000
)

// Recorder accepts audit events. Components that emit audit events depend on
// this interface rather than on *Log.
type Recorder interface {
	Record(ctx context.Context, ev Event) Entry
}

// Log is an in-memory ring of audit entries, safe for concurrent use.
type Log struct {
	mu        sync.Mutex
	ring      []Entry // fixed length == capacity
	head      int     // index of the newest entry
	size      int
	now       func() time.Time
	logger    *slog.Logger
	mirror    *mirror
	closeOnce sync.Once
}

// Option configures a Log.
type Option func(*Log)

// WithCapacity sets the ring capacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.ring = make([]Entry, n)
		}
	}
}

// WithClock sets the time source used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for mirror failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSink mirrors every recorded entry to sink through a queue of the given
// size. The Log takes ownership of sink and closes it in Close.
func WithSink(sink Sink, queue int) Option {
	return func(l *Log) {
		if sink == nil {
			return
		}
		if queue <= 0 {
			queue = DefaultMirrorQueue
		}
		l.mirror = &mirror{
			sink:      sink,
			asyncChan: make(chan Entry, queue),
			stopChan:  make(chan struct{}),
		}
	}
}

// NewLog creates a Log. When a sink is configured, a consumer goroutine is
// started and Close must be called to stop it.
func NewLog(opts ...Option) *Log {
	l := &Log{
		ring:   make([]Entry, DefaultCapacity),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.mirror != nil {
		l.mirror.logger = l.logger
		l.mirror.start()
	}
	return l
}

// Record stamps ev with a fresh id and timestamp and stores it as the newest
// entry, evicting the oldest entry when the ring is full.
func (l *Log) Record(_ context.Context, ev Event) Entry {
	l.mu.Lock()
	now := l.now()
	entry := Entry{
		ID:        idgen.At(now),
		UserID:    ev.UserID,
		Action:    ev.Action,
		Outcome:   ev.Outcome,
		Detail:    ev.Detail,
		Origin:    ev.Origin,
		CreatedAt: now,
	}
	capacity := len(l.ring)
	l.head = (l.head + 1) % capacity
	l.ring[l.head] = entry
	if l.size < capacity {
		l.size++
	} else {
		evictionsCounter.Inc()
	}
	l.mu.Unlock()

	entriesCounter.WithLabelValues(entry.Action, string(entry.Outcome)).Inc()
	if l.mirror != nil {
		l.mirror.enqueue(entry)
	}
	return entry
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns DefaultListLimit entries. The returned slice is a copy.
func (l *Log) List(limit int) []Entry {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := min(limit, l.size)
	out := make([]Entry, 0, n)
	capacity := len(l.ring)
	for i := range n {
		out = append(out, l.ring[(l.head-i+capacity)%capacity])
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of retained entries.
func (l *Log) Capacity() int {
	return len(l.ring)
}

// Close stops the mirror consumer, draining queued entries into the sink,
// and closes the sink. It is safe to call more than once.
func (l *Log) Close() error {
	if l.mirror == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() {
		err = l.mirror.stop()
	})
	return err
}
