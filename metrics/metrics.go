// Package metrics registers the client's Prometheus observability surface:
// the router cache histograms/counters whose names are part of the public
// operator contract, plus per-endpoint write/query timers
// labeled by host-scoped series.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RouteForTablesRefreshedSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "route_for_tables_refreshed_size",
		Help: "Number of routes refreshed from the cluster per routeFor call",
	})

	RouteForTablesCachedSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "route_for_tables_cached_size",
		Help: "Size of the route cache observed per routeFor call",
	})

	RouteForTablesGcTimes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "route_for_tables_gc_times",
		Help: "Number of GC rounds run against the route cache",
	})

	RouteForTablesGcItems = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "route_for_tables_gc_items",
		Help: "Number of route cache entries evicted per GC round",
	})

	RouteForTablesGcTimer = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "route_for_tables_gc_timer",
		Help: "Duration of a single route cache GC round",
	})

	EndpointWriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "endpoint_write_duration_seconds",
		Help: "Per-endpoint write RPC duration",
	}, []string{"endpoint"})

	EndpointQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "endpoint_query_duration_seconds",
		Help: "Per-endpoint query RPC duration",
	}, []string{"endpoint"})

	WriteBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "write_batch_size",
		Help:    "Points submitted per write call",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	RetriesByCode = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retries_total",
		Help: "Retries issued per error code",
	}, []string{"code"})
)

func init() {
	prometheus.MustRegister(
		RouteForTablesRefreshedSize,
		RouteForTablesCachedSize,
		RouteForTablesGcTimes,
		RouteForTablesGcItems,
		RouteForTablesGcTimer,
		EndpointWriteDuration,
		EndpointQueryDuration,
		WriteBatchSize,
		RetriesByCode,
	)
}
