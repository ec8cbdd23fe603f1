// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_auth_login_total",
		Help: "Total number of authentication attempts by result",
	}, []string{"result"})

	lockoutsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderdesk_auth_lockouts_total",
		Help: "Total number of times an account was locked",
	})

	passwordChangeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_auth_password_changes_total",
		Help: "Total number of password change attempts by result",
	}, []string{"result"})

	hashDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderdesk_auth_hash_duration_seconds",
		Help:    "Time spent deriving password hashes",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	sessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orderdesk_sessions_active",
		Help: "Number of live sessions",
	})
)
