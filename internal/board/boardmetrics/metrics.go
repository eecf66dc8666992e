package boardmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsByStatus tracks the number of job postings in each lifecycle status.
	JobsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "jobdeck",
		Subsystem: "board",
		Name:      "jobs_by_status",
		Help:      "Number of job postings by lifecycle status.",
	}, []string{"status"})

	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobdeck",
		Subsystem: "board",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobdeck",
		Subsystem: "board",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// CheckoutSessionsTotal counts checkout session attempts by outcome.
	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobdeck",
		Subsystem: "board",
		Name:      "checkout_sessions_total",
		Help:      "Total checkout session creation attempts by outcome.",
	}, []string{"outcome"})

	// JobsPublishedTotal counts effective DRAFT to ACTIVE transitions.
	JobsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jobdeck",
		Subsystem: "board",
		Name:      "jobs_published_total",
		Help:      "Total job postings published after payment confirmation.",
	})
)
