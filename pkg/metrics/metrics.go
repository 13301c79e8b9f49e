package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperations records store operations by table, operation and result (success|failure).
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typedkv_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"table", "operation", "result"},
	)

	// ExpiredReads counts reads that found an entry past its TTL and removed it.
	ExpiredReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typedkv_expired_reads_total",
			Help: "Total number of reads that hit an expired entry",
		},
		[]string{"table"},
	)

	// OpenStores tracks stores with an open database handle.
	OpenStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "typedkv_open_stores",
			Help: "Number of stores with an initialised connection",
		},
	)

	// OperationLatency measures store operation latencies.
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "typedkv_operation_latency_seconds",
			Help:    "Store operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "operation"},
	)

	// MemoLookups counts memoised function lookups by outcome (hit|miss|bypass).
	MemoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typedkv_memo_lookups_total",
			Help: "Total number of memoised function lookups",
		},
		[]string{"function", "outcome"},
	)
)
