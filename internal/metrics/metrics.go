package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paygate",
		Name:      "proxy_requests_total",
		Help:      "Gateway calls forwarded by the credential proxy.",
	}, []string{"channel", "code"})

	tokenFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paygate",
		Name:      "token_fetches_total",
		Help:      "Bearer tokens requested from the gateway.",
	}, []string{"channel", "result"})

	pollerOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paygate",
		Name:      "poller_outcomes_total",
		Help:      "Terminal states reached by transaction status pollers.",
	}, []string{"status"})

	activePollers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "paygate",
		Name:      "pollers_active",
		Help:      "Status pollers currently running.",
	})
)

// ProxyRequest counts a forwarded call. code 0 means the call never got an answer.
func ProxyRequest(channel string, code int) {
	proxyRequests.WithLabelValues(channel, strconv.Itoa(code)).Inc()
}

func TokenFetch(channel string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	tokenFetches.WithLabelValues(channel, result).Inc()
}

func PollerOutcome(status string) {
	pollerOutcomes.WithLabelValues(status).Inc()
}

func PollerStarted() {
	activePollers.Inc()
}

func PollerStopped() {
	activePollers.Dec()
}
