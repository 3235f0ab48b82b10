package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records outcomes of reservation and contribution
// operations. All methods are nil-safe so callers can run without a
// registry in tests.
type LedgerMetrics struct {
	opDuration   *prometheus.HistogramVec
	opRejections *prometheus.CounterVec
	lockTimeouts prometheus.Counter
	giftsFunded  prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_op_duration_seconds",
		Help:    "Duration of ledger operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	opRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_op_rejections",
		Help: "Ledger operations rejected by a state or amount rule.",
	}, []string{"op", "reason"})
	lockTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_lock_timeouts",
		Help: "Operations that gave up waiting for a gift lock.",
	})
	giftsFunded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_gifts_funded",
		Help: "Gifts that reached their full price through contributions.",
	})
	reg.MustRegister(opDuration, opRejections, lockTimeouts, giftsFunded)
	return &LedgerMetrics{
		opDuration:   opDuration,
		opRejections: opRejections,
		lockTimeouts: lockTimeouts,
		giftsFunded:  giftsFunded,
	}
}

// ObserveOp records the duration of the named ledger operation.
func (l *LedgerMetrics) ObserveOp(op string, duration time.Duration) {
	if l == nil || l.opDuration == nil {
		return
	}
	l.opDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

// IncRejection counts a rejected operation with the rule that blocked it.
func (l *LedgerMetrics) IncRejection(op, reason string) {
	if l == nil || l.opRejections == nil {
		return
	}
	l.opRejections.WithLabelValues(normalizeLabel(op), normalizeLabel(reason)).Inc()
}

// IncLockTimeout counts an operation that timed out waiting for a gift lock.
func (l *LedgerMetrics) IncLockTimeout() {
	if l == nil || l.lockTimeouts == nil {
		return
	}
	l.lockTimeouts.Inc()
}

// IncGiftFunded counts a gift crossing into the funded state.
func (l *LedgerMetrics) IncGiftFunded() {
	if l == nil || l.giftsFunded == nil {
		return
	}
	l.giftsFunded.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
