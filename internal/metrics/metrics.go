package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts settlement state transitions.
type Metrics struct {
	ordersCreated   prometheus.Counter
	ordersExpired   prometheus.Counter
	ordersCanceled  prometheus.Counter
	captures        prometheus.Counter
	captureFailures prometheus.Counter
	payoutsSent     prometheus.Counter
	payoutFailures  prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "settlement_orders_created_total",
			Help: "Total number of purchase intents created",
		}),
		ordersExpired: registerCounter(registerer, prometheus.CounterOpts{
			Name: "settlement_orders_expired_total",
			Help: "Total number of stale orders auto-expired",
		}),
		ordersCanceled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "settlement_orders_canceled_total",
			Help: "Total number of orders canceled by buyer or gateway redirect",
		}),
		captures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "settlement_captures_total",
			Help: "Total number of completed gateway captures",
		}),
		captureFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "settlement_capture_failures_total",
			Help: "Total number of failed gateway captures",
		}),
		payoutsSent: registerCounter(registerer, prometheus.CounterOpts{
			Name: "settlement_payouts_sent_total",
			Help: "Total number of seller payouts sent",
		}),
		payoutFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "settlement_payout_failures_total",
			Help: "Total number of failed seller payouts",
		}),
	}
}

func (m *Metrics) OrderCreated()  { m.ordersCreated.Inc() }
func (m *Metrics) OrderExpired()  { m.ordersExpired.Inc() }
func (m *Metrics) OrderCanceled() { m.ordersCanceled.Inc() }
func (m *Metrics) CaptureDone()   { m.captures.Inc() }
func (m *Metrics) CaptureFailed() { m.captureFailures.Inc() }
func (m *Metrics) PayoutSent()    { m.payoutsSent.Inc() }
func (m *Metrics) PayoutFailed()  { m.payoutFailures.Inc() }

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	counter := prometheus.NewCounter(opts)
	if err := registerer.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return counter
}
