// Package metrics exposes Prometheus instrumentation for permission
// checks, config synchronization and the result cache. The host mounts
// Handler() wherever it serves its own metrics.
package metrics

import (
	"net/http"

	"github.com/moacode/craft-fab-permissions/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates permission service metrics into its own registry,
// so multiple collectors can coexist in one process.
type Collector struct {
	registry *prometheus.Registry

	checksTotal     *prometheus.CounterVec
	syncEventsTotal *prometheus.CounterVec
	cascadesTotal   *prometheus.CounterVec
	layoutSaves     prometheus.Counter

	cacheHits    prometheus.Gauge
	cacheMisses  prometheus.Gauge
	cacheHitRate prometheus.Gauge

	cache cache.Cache
}

// NewCollector creates a metrics collector with a private registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabpermissions_checks_total",
			Help: "Permission check decisions by check type and outcome",
		}, []string{"check", "decision"}),
		syncEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabpermissions_sync_events_total",
			Help: "Config tree events applied to the grant store",
		}, []string{"op"}),
		cascadesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fabpermissions_cascade_deletes_total",
			Help: "Grants removed because a referenced entity was deleted",
		}, []string{"entity"}),
		layoutSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fabpermissions_layout_saves_total",
			Help: "Layout permission submissions processed",
		}),
		cacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fabpermissions_check_cache_hits",
			Help: "Cache hits for permission check results",
		}),
		cacheMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fabpermissions_check_cache_misses",
			Help: "Cache misses for permission check results",
		}),
		cacheHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fabpermissions_check_cache_hit_rate",
			Help: "Cache hit rate for permission check results (0.0 to 1.0)",
		}),
	}

	registry.MustRegister(
		c.checksTotal, c.syncEventsTotal, c.cascadesTotal, c.layoutSaves,
		c.cacheHits, c.cacheMisses, c.cacheHitRate,
	)

	return c
}

// SetCache sets the cache whose statistics are exported.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordCheck records one permission check decision.
// check is one of "view_tab", "view_field", "edit_field".
func (c *Collector) RecordCheck(check string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	c.checksTotal.WithLabelValues(check, decision).Inc()
}

// RecordSyncEvent records one applied config tree event.
// op is one of "added", "updated", "removed".
func (c *Collector) RecordSyncEvent(op string) {
	c.syncEventsTotal.WithLabelValues(op).Inc()
}

// RecordCascade records grants removed by an upstream entity deletion.
// entity is one of "field", "site", "layout", "group".
func (c *Collector) RecordCascade(entity string, removed int) {
	c.cascadesTotal.WithLabelValues(entity).Add(float64(removed))
}

// RecordLayoutSave records one processed layout permission submission.
func (c *Collector) RecordLayoutSave() {
	c.layoutSaves.Inc()
}

// updateCacheMetrics refreshes the cache gauges from the cache snapshot.
func (c *Collector) updateCacheMetrics() {
	if c.cache == nil {
		return
	}
	m := c.cache.Metrics()
	c.cacheHits.Set(float64(m.Hits))
	c.cacheMisses.Set(float64(m.Misses))
	c.cacheHitRate.Set(m.HitRate())
}

// Handler returns an HTTP handler serving this collector's registry.
// Cache gauges are refreshed on every scrape.
func (c *Collector) Handler() http.Handler {
	inner := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.updateCacheMetrics()
		inner.ServeHTTP(w, r)
	})
}
