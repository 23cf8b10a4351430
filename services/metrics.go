package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders created, by payment method.",
	}, []string{"payment_method"})

	paymentsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_updated_total",
		Help: "Payment status changes applied from the gateway.",
	}, []string{"status"})
)
