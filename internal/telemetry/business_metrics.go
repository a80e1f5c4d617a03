package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability.
type BusinessMetrics struct {
	// Catalog engagement
	ItemViews     prometheus.Counter
	ItemWishlists prometheus.Counter

	// Cart
	CartMutations *prometheus.CounterVec
	CartValue     prometheus.Histogram

	// Orders
	OrdersCreated      prometheus.Counter
	OrderValue         prometheus.Histogram
	OrderItemCount     prometheus.Histogram
	OrderStatusChanges *prometheus.CounterVec

	// Consistency
	InsufficientStock     prometheus.Counter
	StockDepleted         prometheus.Counter
	ReconciliationFlags   prometheus.Counter
	OrderNumberCollisions prometheus.Counter
}

// NewBusinessMetrics creates and registers all business metrics with the
// given registerer. Pass prometheus.DefaultRegisterer in production.
func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	factory := promauto.With(reg)

	return &BusinessMetrics{
		ItemViews: factory.NewCounter(prometheus.CounterOpts{
			Name: "figura_item_views_total",
			Help: "Catalog item detail views.",
		}),
		ItemWishlists: factory.NewCounter(prometheus.CounterOpts{
			Name: "figura_item_wishlist_adds_total",
			Help: "Wishlist additions.",
		}),
		CartMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "figura_cart_mutations_total",
			Help: "Cart mutations by operation.",
		}, []string{"op"}),
		CartValue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "figura_cart_value_cents",
			Help:    "Cart subtotal at mutation time, in cents.",
			Buckets: prometheus.ExponentialBuckets(500, 2.5, 10),
		}),
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "figura_orders_created_total",
			Help: "Orders successfully created.",
		}),
		OrderValue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "figura_order_value_cents",
			Help:    "Order totals, in cents.",
			Buckets: prometheus.ExponentialBuckets(500, 2.5, 10),
		}),
		OrderItemCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "figura_order_item_count",
			Help:    "Line quantities per order.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		OrderStatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "figura_order_status_changes_total",
			Help: "Order status transitions by target status.",
		}, []string{"status"}),
		InsufficientStock: factory.NewCounter(prometheus.CounterOpts{
			Name: "figura_insufficient_stock_total",
			Help: "Checkout attempts rejected for insufficient stock.",
		}),
		StockDepleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "figura_stock_depleted_total",
			Help: "Items whose stock reached zero through a sale.",
		}),
		ReconciliationFlags: factory.NewCounter(prometheus.CounterOpts{
			Name: "figura_reconciliation_flags_total",
			Help: "Orders flagged for manual inventory reconciliation.",
		}),
		OrderNumberCollisions: factory.NewCounter(prometheus.CounterOpts{
			Name: "figura_order_number_collisions_total",
			Help: "Order number collisions retried with a widened suffix.",
		}),
	}
}
