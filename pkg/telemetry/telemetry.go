package telemetry

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatshard_events_appended_total",
		Help: "Events appended across all chat logs.",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatshard_messages_sent_total",
		Help: "Messages accepted, duplicates excluded.",
	})
	MessagesPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatshard_messages_purged_total",
		Help: "Soft-deleted messages hard-deleted by the GC sweep.",
	})
	EventsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatshard_events_expired_total",
		Help: "TTL events removed by the GC sweep.",
	})
	ChatsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatshard_chats_purged_total",
		Help: "Deleted chats whose key ranges the GC sweep removed.",
	})
	TradesSettled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatshard_trades_settled_total",
		Help: "P2P trades driven to completed.",
	})
	MigrationBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatshard_migration_batches_total",
		Help: "Key batches shipped to a peer shard.",
	})
	TurnDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatshard_turn_duration_seconds",
		Help:    "Run-to-completion turn execution time.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chatshard_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects.",
		},
		func() float64 {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return float64(m.HeapAlloc)
		},
	)
	numGC = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chatshard_gc_runs_total",
			Help: "Completed Go GC cycles.",
		},
		func() float64 {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return float64(m.NumGC)
		},
	)
)

func init() {
	prometheus.MustRegister(EventsAppended)
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(MessagesPurged)
	prometheus.MustRegister(EventsExpired)
	prometheus.MustRegister(ChatsPurged)
	prometheus.MustRegister(TradesSettled)
	prometheus.MustRegister(MigrationBatches)
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(heapAlloc)
	prometheus.MustRegister(numGC)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTurn records one turn's wall time.
func ObserveTurn(d time.Duration) {
	TurnDuration.Observe(d.Seconds())
}
