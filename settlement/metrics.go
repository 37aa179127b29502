package settlement

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/libmarket-go/auth"
)

// Metrics counts settlement outcomes.
type Metrics struct {
	Settlements *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Payouts     *prometheus.CounterVec
	Grants      *prometheus.CounterVec
}

// NewMetrics creates the settlement collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "settlement",
			Name:      "total",
			Help:      "Settlement attempts by kind and result code.",
		}, []string{"kind", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "market",
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Time spent per settlement attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "settlement",
			Name:      "payouts_total",
			Help:      "Non-zero payouts credited, by role.",
		}, []string{"role"}),
		Grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "settlement",
			Name:      "grants_total",
			Help:      "Approval, deposit and collection grants by kind and result code.",
		}, []string{"kind", "result"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Settlements, m.Duration, m.Payouts, m.Grants} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// observe logs and counts one finished attempt.
func (e *Engine) observe(kind Kind, receipt *Receipt, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = string(CodeOf(err))
		log.Warnw("settlement failed", "kind", kind, "code", result, "error", err)
	} else {
		log.Infow("settled",
			"id", receipt.ID,
			"kind", kind,
			"collection", receipt.Collection.Hex(),
			"token", receipt.TokenID.String(),
			"buyer", receipt.Buyer.Hex(),
			"seller", receipt.Seller.Hex(),
			"price", receipt.Price.String())
	}

	if e.metrics == nil {
		return
	}
	e.metrics.Settlements.WithLabelValues(string(kind), result).Inc()
	e.metrics.Duration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if receipt != nil {
		for _, p := range receipt.Payouts {
			if p.Amount.Sign() > 0 {
				e.metrics.Payouts.WithLabelValues(p.Role.String()).Inc()
			}
		}
	}
}

// observeGrant logs and counts one ledger grant.
func (e *Engine) observeGrant(kind auth.Kind, err error) {
	result := "ok"
	if err != nil {
		result = string(CodeOf(asSettlementError(err)))
		log.Warnw("grant rejected", "kind", kind.String(), "code", result, "error", err)
	} else {
		log.Infow("grant applied", "kind", kind.String())
	}
	if e.metrics != nil {
		e.metrics.Grants.WithLabelValues(kind.String(), result).Inc()
	}
}
