// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package orders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderdesk_orders",
		Help: "Number of stored orders",
	})

	mutationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_order_mutations_total",
		Help: "Total number of successful order mutations",
	}, []string{"op"})
)
