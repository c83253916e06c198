// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes Prometheus collectors for request volume,
// error taxonomy, and bytes moved through the fetch/reduce pipeline,
// served at /metrics via promhttp.Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activestorage_requests_total",
		Help: "Total reduction requests received, by operation",
	}, []string{"op"})

	ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "activestorage_errors_total",
		Help: "Total requests that failed, by error kind",
	}, []string{"kind"})

	BytesFetched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "activestorage_bytes_fetched_total",
		Help: "Total bytes read from S3 object storage across all requests",
	})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "activestorage_request_duration_seconds",
		Help:    "Request latency from receipt to response, by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	MemoryInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "activestorage_memory_inuse_bytes",
		Help: "Memory currently admitted against the memory resource semaphore",
	})

	S3ConnectionsInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "activestorage_s3_connections_inuse",
		Help: "S3 connection permits currently held",
	})

	CPUTasksInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "activestorage_cpu_tasks_inuse",
		Help: "Reduction-kernel task permits currently held",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, ErrorsTotal, BytesFetched, RequestDuration,
		MemoryInUse, S3ConnectionsInUse, CPUTasksInUse,
	)
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
