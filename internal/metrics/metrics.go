// Package metrics exposes the Prometheus collectors the pipeline, RPC
// adapter, and warehouse sinks report through, following the
// package-level-vars-plus-Init() pattern of zk/metrics/metrics_xlayer.go.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Prefix                 = "evmindexer_"
	BlocksCommittedName    = Prefix + "blocks_committed_total"
	RPCRetriesName         = Prefix + "rpc_retries_total"
	OversizedTraceName     = Prefix + "oversized_trace_blocks_total"
	WarehouseAppendTimeName = Prefix + "warehouse_append_duration_seconds"
	CommittedCursorName    = Prefix + "pipeline_committed_cursor"
	DurableWatermarkName   = Prefix + "sink_durable_watermark"
)

var (
	BlocksCommitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: BlocksCommittedName,
			Help: "blocks committed to the warehouse, by chain",
		},
		[]string{"chain"},
	)

	RPCRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: RPCRetriesName,
			Help: "RPC calls retried, by method",
		},
		[]string{"op"},
	)

	OversizedTraceBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: OversizedTraceName,
			Help: "blocks committed with trace data omitted after an oversized trace response, by chain",
		},
		[]string{"chain"},
	)

	WarehouseAppendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    WarehouseAppendTimeName,
			Help:    "time spent appending a batch to a warehouse dataset",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dataset"},
	)

	CommittedCursor = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: CommittedCursorName,
			Help: "highest block number committed across all datasets, by chain",
		},
		[]string{"chain"},
	)

	DurableWatermark = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: DurableWatermarkName,
			Help: "highest block number durably persisted in a dataset, by dataset and chain",
		},
		[]string{"dataset", "chain"},
	)
)

// Init registers every collector with the default registry. Call once at
// process startup before serving /metrics.
func Init() {
	prometheus.MustRegister(BlocksCommitted)
	prometheus.MustRegister(RPCRetries)
	prometheus.MustRegister(OversizedTraceBlocks)
	prometheus.MustRegister(WarehouseAppendDuration)
	prometheus.MustRegister(CommittedCursor)
	prometheus.MustRegister(DurableWatermark)
}

// RPCCounter adapts the package vars to rpcadapter's retryCounter interface,
// keeping that package decoupled from any specific metrics backend.
type RPCCounter struct {
	Chain string
}

func (c RPCCounter) IncRPCRetry(op string) {
	RPCRetries.WithLabelValues(op).Inc()
}

func (c RPCCounter) String() string {
	return fmt.Sprintf("rpc-counter(chain=%s)", c.Chain)
}
