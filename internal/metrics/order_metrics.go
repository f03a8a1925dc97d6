package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики оформления заказов.
type OrderMetrics struct {
	// Счётчики операций
	placementsStarted   prometheus.Counter
	placementsCompleted prometheus.Counter
	placementsRejected  *prometheus.CounterVec

	// Гистограммы
	placementDuration prometheus.Histogram
	orderTotal        prometheus.Histogram
	discountFraction  prometheus.Histogram

	// Gauge для оформлений в полёте
	activePlacements prometheus.Gauge
}

// NewOrderMetrics создаёт метрики оформления на default registerer.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		placementsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_placements_started_total",
			Help: "Total number of order placements started",
		}),
		placementsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_placements_completed_total",
			Help: "Total number of order placements committed successfully",
		}),
		placementsRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_placements_rejected_total",
			Help: "Total number of rejected order placements grouped by reason",
		}, []string{"reason"}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_placement_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		orderTotal: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_total_price",
			Help:    "Final order totals after discounts",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		discountFraction: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_discount_fraction",
			Help:    "Combined discount fraction applied to orders",
			Buckets: []float64{0, 0.05, 0.1, 0.15, 0.2, 0.3, 0.5, 1.0},
		}),
		activePlacements: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_order_placements",
			Help: "Number of order placements currently in flight",
		}),
	}
}

// RecordPlacementStarted отмечает начало оформления.
func (m *OrderMetrics) RecordPlacementStarted() {
	m.placementsStarted.Inc()
	m.activePlacements.Inc()
}

// RecordPlacementCompleted отмечает успешную фиксацию заказа.
func (m *OrderMetrics) RecordPlacementCompleted(total float64, fraction float64) {
	m.placementsCompleted.Inc()
	m.orderTotal.Observe(total)
	m.discountFraction.Observe(fraction)
}

// RecordPlacementRejected отмечает отклонённое оформление с причиной.
func (m *OrderMetrics) RecordPlacementRejected(reason string) {
	m.placementsRejected.WithLabelValues(reason).Inc()
}

// RecordPlacementFinished фиксирует завершение оформления (любым исходом).
func (m *OrderMetrics) RecordPlacementFinished(duration time.Duration) {
	m.activePlacements.Dec()
	m.placementDuration.Observe(duration.Seconds())
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
