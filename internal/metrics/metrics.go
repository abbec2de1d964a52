// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sendcertificates_http_requests_total",
		Help: "Total number of HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sendcertificates_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sendcertificates_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"})

	tokensGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sendcertificates_tokens_granted_total",
		Help: "Total number of tokens granted by administrators",
	})

	usersDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sendcertificates_users_deleted_total",
		Help: "Total number of accounts removed by administrators",
	})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sendcertificates_rate_limited_total",
		Help: "Requests rejected by the rate limiter by route",
	}, []string{"route"})
)

// ObserveLogin records a login attempt.
func ObserveLogin(success bool) {
	if success {
		logins.WithLabelValues("success").Inc()
		return
	}
	logins.WithLabelValues("failure").Inc()
}

// AddTokensGranted adds amount to the granted tokens counter.
func AddTokensGranted(amount int64) {
	if amount > 0 {
		tokensGranted.Add(float64(amount))
	}
}

// IncrementUsersDeleted increments the deleted accounts counter by 1.
func IncrementUsersDeleted() {
	usersDeleted.Inc()
}

// IncrementRateLimited records one rejected request for route.
func IncrementRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}

// Middleware records request counts and latency keyed by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default Prometheus registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
