// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_audit_entries_total",
		Help: "Total number of audit entries recorded",
	}, []string{"action", "outcome"})

	evictionsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderdesk_audit_evictions_total",
		Help: "Total number of audit entries evicted from the in-memory ring",
	})

	mirrorDroppedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderdesk_audit_mirror_dropped_total",
		Help: "Total number of entries not mirrored because the mirror queue was full",
	})

	mirrorFailuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_audit_mirror_failures_total",
		Help: "Total number of audit mirror write failures",
	}, []string{"reason"})
)
