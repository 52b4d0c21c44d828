package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts credential and webhook outcomes. Labels are low-cardinality; no user or shop ids.
type Collector struct {
	registry        *prometheus.Registry
	refreshOutcomes *prometheus.CounterVec
	oauthOutcomes   *prometheus.CounterVec
	webhookChecks   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// NewCollector registers the integration counters plus Go and process collectors on a private registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		refreshOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integration_token_refresh_total",
			Help: "Token refresh attempts by platform and outcome.",
		}, []string{"platform", "outcome"}),
		oauthOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integration_oauth_callbacks_total",
			Help: "OAuth callbacks by platform and outcome.",
		}, []string{"platform", "outcome"}),
		webhookChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integration_webhook_verifications_total",
			Help: "Webhook signature checks by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integration_http_requests_total",
			Help: "HTTP requests by route pattern and status class.",
		}, []string{"route", "status"}),
	}
	c.registry.MustRegister(
		c.refreshOutcomes,
		c.oauthOutcomes,
		c.webhookChecks,
		c.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) RefreshOutcome(platform, outcome string) {
	c.refreshOutcomes.WithLabelValues(platform, outcome).Inc()
}

func (c *Collector) OAuthOutcome(platform, outcome string) {
	c.oauthOutcomes.WithLabelValues(platform, outcome).Inc()
}

func (c *Collector) WebhookVerification(outcome string) {
	c.webhookChecks.WithLabelValues(outcome).Inc()
}

// HTTPRequest records one served request
func (c *Collector) HTTPRequest(route, status string) {
	c.httpRequests.WithLabelValues(route, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
