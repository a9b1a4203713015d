// Package metrics exposes Prometheus collectors for report assembly, document
// fetches, chat requests and HTTP traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/joelkehle/roimap/internal/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roimap"

// Registry owns a private Prometheus registry and the service's collectors.
// It satisfies report.Observer, docsource.FetchObserver and llm.ChatObserver.
type Registry struct {
	reg *prometheus.Registry

	assemblies   *prometheus.CounterVec
	warnings     *prometheus.CounterVec
	regions      *prometheus.GaugeVec
	fetches      *prometheus.CounterVec
	chats        *prometheus.CounterVec
	httpRequests *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		assemblies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assemblies_total",
			Help:      "Report assemblies by city and outcome.",
		}, []string{"city", "outcome"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assembly_warnings_total",
			Help:      "Features or opportunities dropped during assembly, by kind.",
		}, []string{"kind"}),
		regions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "regions",
			Help:      "Regions in the most recent successful assembly per city.",
		}, []string{"city"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_fetches_total",
			Help:      "Document fetch attempts by source, collection and outcome.",
		}, []string{"source", "collection", "outcome"}),
		chats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat answers by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	r.reg.MustRegister(
		r.assemblies, r.warnings, r.regions, r.fetches, r.chats, r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

func (r *Registry) ObserveAssembly(cityKey string, res *report.Result, err error) {
	if err != nil {
		outcome := "error"
		var rerr *report.Error
		if errors.As(err, &rerr) {
			outcome = rerr.Code
		}
		r.assemblies.WithLabelValues(cityKey, outcome).Inc()
		return
	}
	r.assemblies.WithLabelValues(cityKey, "ok").Inc()
	if res == nil {
		return
	}
	for _, w := range res.Warnings {
		r.warnings.WithLabelValues(string(w.Kind)).Inc()
	}
	if res.Report != nil {
		r.regions.WithLabelValues(cityKey).Set(float64(len(res.Report.Regions)))
	}
}

func (r *Registry) ObserveFetch(source, collection string, err error) {
	outcome := "hit"
	switch {
	case errors.Is(err, docsource.ErrNotFound):
		outcome = "miss"
	case err != nil:
		outcome = "error"
	}
	r.fetches.WithLabelValues(source, collection, outcome).Inc()
}

func (r *Registry) ObserveChat(outcome string) {
	r.chats.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
