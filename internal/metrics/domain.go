package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search, OTP and vision Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "search_requests_total",
			Help:      "Total number of product searches",
		},
		[]string{"mode"}, // "text" / "image" / "suggest"
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "search_results",
			Help:      "Number of products returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"mode"},
	)

	OTPIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "otp_issued_total",
			Help:      "Total one-time passcodes issued",
		},
		[]string{"purpose"},
	)

	OTPValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "otp_validations_total",
			Help:      "Total one-time passcode validations by outcome",
		},
		[]string{"purpose", "outcome"},
	)

	VisionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "vision_requests_total",
			Help:      "Total image analysis requests",
		},
		[]string{"provider", "model", "status"},
	)

	VisionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "vision_request_duration_seconds",
			Help:      "Image analysis request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	VisionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "vision_cache_total",
			Help:      "Image analysis cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers search, OTP and vision metrics. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(OTPIssuedTotal)
	prometheus.MustRegister(OTPValidationsTotal)
	prometheus.MustRegister(VisionRequestsTotal)
	prometheus.MustRegister(VisionRequestDuration)
	prometheus.MustRegister(VisionCacheTotal)
	domainMetricsRegistered = true
}
