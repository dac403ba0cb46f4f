package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpDurationHistogram    *prometheus.HistogramVec
	httpInFlightGauge        prometheus.Gauge
	ledgerImbalanceCounter   *prometheus.CounterVec
	idempotencyCounter       *prometheus.CounterVec
	withdrawalQueueGauge     prometheus.Gauge
	withdrawalTransitionsCtr *prometheus.CounterVec
	mpesaCallbackCounter     *prometheus.CounterVec
	rentalEventCounter       *prometheus.CounterVec
	workerRunCounter         *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		httpInFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Requests currently being served",
		})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Wallets whose balances disagree with the entry journal or active rentals",
		}, []string{"check"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		withdrawalQueueGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "withdrawal_pending_queue_size",
			Help: "Current number of withdrawals waiting for an admin decision",
		})

		withdrawalTransitionsCtr = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "withdrawal_transitions_total",
			Help: "Withdrawal status transitions",
		}, []string{"to"})

		mpesaCallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mpesa_callbacks_total",
			Help: "M-Pesa STK callbacks by outcome",
		}, []string{"result"})

		rentalEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rental_events_total",
			Help: "Rental lifecycle events",
		}, []string{"event"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			httpInFlightGauge,
			ledgerImbalanceCounter,
			idempotencyCounter,
			withdrawalQueueGauge,
			withdrawalTransitionsCtr,
			mpesaCallbackCounter,
			rentalEventCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

// TrackInFlight bumps the in-flight gauge and returns the matching decrement.
func TrackInFlight() func() {
	if httpInFlightGauge == nil {
		return func() {}
	}
	httpInFlightGauge.Inc()
	return httpInFlightGauge.Dec
}

func IncrementLedgerImbalance(check string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(check).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func SetWithdrawalQueueSize(size int64) {
	if withdrawalQueueGauge == nil {
		return
	}
	withdrawalQueueGauge.Set(float64(size))
}

func IncrementWithdrawalTransition(to string) {
	if withdrawalTransitionsCtr == nil {
		return
	}
	withdrawalTransitionsCtr.WithLabelValues(to).Inc()
}

func IncrementMpesaCallback(result string) {
	if mpesaCallbackCounter == nil {
		return
	}
	mpesaCallbackCounter.WithLabelValues(result).Inc()
}

func IncrementRentalEvent(event string) {
	if rentalEventCounter == nil {
		return
	}
	rentalEventCounter.WithLabelValues(event).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
