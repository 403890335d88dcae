/*
 * trial-relay republishes a LIVE-only IPTV playlist from an automated trial account.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */
// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trial_relay"

var (
	// Refreshes counts cache refresh attempts by result (fresh, success, error).
	Refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Cache refresh attempts by result.",
	}, []string{"result"})

	// Acquisitions counts trial acquisitions by the stage they ended at.
	Acquisitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "acquisitions_total",
		Help:      "Trial acquisitions by final stage and result.",
	}, []string{"stage", "result"})

	// CredentialSource counts where the credential of a refresh came from.
	CredentialSource = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_source_total",
		Help:      "Credentials used for refreshes by source (ledger, acquired).",
	}, []string{"source"})

	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of cache refreshes that did network work.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
	})

	PlaylistChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "playlist_channels",
		Help:      "Live channels in the published playlist.",
	})

	LastRefresh = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_refresh_timestamp_seconds",
		Help:      "Unix time of the last published playlist.",
	})

	RefreshInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_in_progress",
		Help:      "1 while a background refresh runs.",
	})
)

// Registry holds every trial-relay collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Refreshes,
		Acquisitions,
		CredentialSource,
		RefreshDuration,
		PlaylistChannels,
		LastRefresh,
		RefreshInProgress,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObservePublish records a newly published playlist.
func ObservePublish(at time.Time, channels int, took time.Duration) {
	LastRefresh.Set(float64(at.Unix()))
	PlaylistChannels.Set(float64(channels))
	RefreshDuration.Observe(took.Seconds())
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}

// SetRefreshing flips the in-progress gauge.
func SetRefreshing(v bool) {
	boolGauge(RefreshInProgress, v)
}
