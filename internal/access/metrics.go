// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// decisionsCounter counts decisions by layer and outcome.
var decisionsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "orderdesk_access_decisions_total",
	Help: "Total number of authorization decisions",
}, []string{"layer", "decision"})

func recordDecision(r Result) {
	decisionsCounter.WithLabelValues(string(r.Layer), r.Decision.String()).Inc()
}
