package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tendant/content-ledger/pkg/contentledger"
)

var (
	ledgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "content_ledger",
		Subsystem: "service",
		Name:      "operations_total",
		Help:      "Count of ledger operations by outcome.",
	}, []string{"operation", "status"})
	ledgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "content_ledger",
		Subsystem: "service",
		Name:      "operation_duration_seconds",
		Help:      "Duration of ledger operations.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "status"})
	ledgerHalted = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "content_ledger",
		Subsystem: "service",
		Name:      "halted",
		Help:      "1 once the ledger has detected corrupted state and stopped accepting writes.",
	})
)

// Ledger records metrics for content ledger operations.
// It satisfies contentledger.Observer.
type Ledger struct{}

// NewLedger creates a Ledger metrics collector.
func NewLedger() *Ledger {
	return &Ledger{}
}

// ObserveOperation records duration and outcome of a ledger operation.
// The status label is the error kind, so rejected payments are split by reason.
func (m Ledger) ObserveOperation(operation string, err error, started time.Time) {
	if operation == "" {
		operation = "unknown"
	}
	status := contentledger.ErrorKind(err)
	if status == "ok" {
		status = "success"
	}
	if errors.Is(err, contentledger.ErrLedgerCorrupted) {
		ledgerHalted.Set(1)
	}

	ledgerOperationsTotal.WithLabelValues(operation, status).Inc()
	ledgerOperationDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

var _ contentledger.Observer = Ledger{}
