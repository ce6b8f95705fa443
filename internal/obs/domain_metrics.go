package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesRecordedTotal counts committed sale lines by price tier.
	SalesRecordedTotal *prometheus.CounterVec
	// MovementsTotal counts appended stock movements by type.
	MovementsTotal *prometheus.CounterVec
	// InsufficientStockTotal counts sale attempts rejected for lack of stock.
	InsufficientStockTotal prometheus.Counter
	// FloorPriceRejectedTotal counts sale lines rejected below the floor price.
	FloorPriceRejectedTotal prometheus.Counter
	// LowStockProducts tracks how many products sit at or under their threshold.
	LowStockProducts prometheus.Gauge
	// QuoteLatency records product quote computation latency in milliseconds.
	QuoteLatency prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_recorded_total",
			Help:      "Count of committed sale line items by price tier.",
		}, []string{"tier"})
		MovementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_movements_total",
			Help:      "Count of appended stock movements by movement type.",
		}, []string{"type"})
		InsufficientStockTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_stock_rejections_total",
			Help:      "Count of sale attempts rejected because the batch lacked stock.",
		})
		FloorPriceRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "floor_price_rejections_total",
			Help:      "Count of sale lines rejected for undercutting the floor price.",
		})
		LowStockProducts = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_stock_products",
			Help:      "Number of products at or under their reorder threshold.",
		})
		QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency of product quote computation in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		})

		mustRegisterCollector(reg, SalesRecordedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SalesRecordedTotal = v
			}
		})
		mustRegisterCollector(reg, MovementsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MovementsTotal = v
			}
		})
		mustRegisterCollector(reg, InsufficientStockTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				InsufficientStockTotal = v
			}
		})
		mustRegisterCollector(reg, FloorPriceRejectedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				FloorPriceRejectedTotal = v
			}
		})
		mustRegisterCollector(reg, LowStockProducts, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				LowStockProducts = v
			}
		})
		mustRegisterCollector(reg, QuoteLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteLatency = v
			}
		})
	})
}

// IncSaleRecorded bumps the committed-sale counter for a tier. Safe to call
// before registration; the increment is simply dropped.
func IncSaleRecorded(tier string) {
	if SalesRecordedTotal != nil {
		SalesRecordedTotal.WithLabelValues(tier).Inc()
	}
}

// IncMovement bumps the movement counter for a movement type.
func IncMovement(movementType string) {
	if MovementsTotal != nil {
		MovementsTotal.WithLabelValues(movementType).Inc()
	}
}

// IncInsufficientStock bumps the insufficient-stock rejection counter.
func IncInsufficientStock() {
	if InsufficientStockTotal != nil {
		InsufficientStockTotal.Inc()
	}
}

// IncFloorPriceRejected bumps the floor-price rejection counter.
func IncFloorPriceRejected() {
	if FloorPriceRejectedTotal != nil {
		FloorPriceRejectedTotal.Inc()
	}
}

// SetLowStockProducts updates the low-stock gauge.
func SetLowStockProducts(n int) {
	if LowStockProducts != nil {
		LowStockProducts.Set(float64(n))
	}
}

// ObserveQuoteLatency records one quote computation duration in milliseconds.
func ObserveQuoteLatency(ms float64) {
	if QuoteLatency != nil {
		QuoteLatency.Observe(ms)
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
