package viewer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// publishTotal counts publish attempts by machine and result (sent, skipped, error).
	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_viewer_publish_total",
		Help: "Total number of snapshot publish attempts by machine and result",
	}, []string{"machine", "result"})

	// ingestTotal counts snapshots received by the viewer server by source and result.
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_viewer_ingest_total",
		Help: "Total number of snapshots received by the viewer by source and result",
	}, []string{"source", "result"})

	// storedMachines tracks the number of live machines in the store.
	storedMachines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "statemachine_viewer_machines",
		Help: "Number of machines with a live snapshot in the viewer store",
	})
)
