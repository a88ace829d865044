// Package metrics holds the Prometheus collectors for the auth server.
// Every recording method is safe on a nil *Metrics, so components can be
// built without metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Session metrics
	LoginsTotal          *prometheus.CounterVec
	TokensIssuedTotal    prometheus.Counter
	TokensRevokedTotal   prometheus.Counter
	TokenCollisionsTotal prometheus.Counter

	// Account metrics
	AccountOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gophauth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_logins_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		TokensIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophauth_tokens_issued_total",
			Help: "Access tokens issued",
		}),
		TokensRevokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophauth_tokens_revoked_total",
			Help: "Access tokens revoked",
		}),
		TokenCollisionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gophauth_token_collisions_total",
			Help: "Generated token strings that were already taken",
		}),
		AccountOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gophauth_account_operations_total",
				Help: "Account operations by name and result",
			},
			[]string{"operation", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.TokensIssuedTotal,
		m.TokensRevokedTotal,
		m.TokenCollisionsTotal,
		m.AccountOperationsTotal,
	)

	return m
}

// Handler serves the exposition format for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) Login(err error) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) TokenIssued() {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.Inc()
}

func (m *Metrics) TokensRevoked(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensRevokedTotal.Add(float64(n))
}

func (m *Metrics) TokenCollision() {
	if m == nil {
		return
	}
	m.TokenCollisionsTotal.Inc()
}

func (m *Metrics) AccountOperation(op string, err error) {
	if m == nil {
		return
	}
	m.AccountOperationsTotal.WithLabelValues(op, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
