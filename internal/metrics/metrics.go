package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	previewsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "medsched",
			Name:      "slot_previews_total",
			Help:      "Count of slot previews generated.",
		},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsched",
			Name:      "schedule_submissions_total",
			Help:      "Count of schedule submissions by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "medsched",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(previewsGenerated, submissions, httpRequests)
	})
}

func IncPreview() {
	previewsGenerated.Inc()
}

func IncSubmission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
