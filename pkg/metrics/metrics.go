package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	tileIngest = "tile_ingest"

	// Upload metrics
	tilesUploadedTotal = "tiles_uploaded_total"

	// Pod metrics
	podExecsTotal = "pod_execs_total"

	// Labels
	uploadStatusLabel = "status"
	execActionLabel   = "action"
)

var tilesUploadedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: tileIngest,
		Name:      tilesUploadedTotal,
		Help:      "number of tiles pushed to object storage, by outcome",
	},
	[]string{uploadStatusLabel},
)

var podExecsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: tileIngest,
		Name:      podExecsTotal,
		Help:      "number of scripts executed inside training pods, by action",
	},
	[]string{execActionLabel},
)

func IncreaseTilesUploadedMetric(status string, count int) {
	tilesUploadedTotalMetric.With(prometheus.Labels{uploadStatusLabel: status}).Add(float64(count))
}

func IncreasePodExecsMetric(action string) {
	podExecsTotalMetric.With(prometheus.Labels{execActionLabel: action}).Inc()
}

func init() {
	prometheus.MustRegister(tilesUploadedTotalMetric)
	prometheus.MustRegister(podExecsTotalMetric)
}
