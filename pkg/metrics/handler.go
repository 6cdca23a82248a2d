package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PrometheusMetricsHandler struct{}

func NewPrometheusMetricsHandler() *PrometheusMetricsHandler {
	return &PrometheusMetricsHandler{}
}

// Handler serves the default prometheus registry.
func (p *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}
