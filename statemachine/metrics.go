package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric result labels.
const (
	resultSuccess = "success"
	resultError   = "error"
)

// Metric definitions with appropriate labels.
var (
	// stateExecutionsTotal counts child state executions by returned outcome.
	stateExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_state_executions_total",
		Help: "Total number of state executions by machine, state and outcome (or error)",
	}, []string{"machine", "state", "outcome"})

	// transitionsTotal counts transitions between registered states.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_transitions_total",
		Help: "Total number of transitions by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// executionsTotal counts finished machine executions by terminal outcome.
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_executions_total",
		Help: "Total number of state machine executions by machine and terminal outcome (or error)",
	}, []string{"machine", "outcome"})

	// failuresTotal counts failed executions by kind.
	failuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statemachine_failures_total",
		Help: "Total number of failed state machine executions by machine and failure kind",
	}, []string{"machine", "kind"})

	// executionDuration tracks end-to-end machine execution time.
	executionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_execution_duration_seconds",
		Help:    "Duration of state machine execution by machine and result",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"machine", "result"})

	// stateDuration tracks individual state execution time.
	stateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "statemachine_state_duration_seconds",
		Help:    "Duration of state execution by machine and state",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"machine", "state"})

	// activeExecutions tracks machines currently inside Execute.
	activeExecutions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "statemachine_active_executions",
		Help: "Number of state machine executions currently running by machine",
	}, []string{"machine"})
)

// outcomeLabel maps an execution result to a bounded label value.
func outcomeLabel(outcome string, err error) string {
	if err != nil {
		return resultError
	}

	if outcome == "" {
		return "none"
	}

	return outcome
}

func resultLabel(err error) string {
	if err != nil {
		return resultError
	}

	return resultSuccess
}
