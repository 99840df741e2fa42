package metrics

// Recorder forwards domain events to both the in-process collector and the
// Prometheus exporter. Either may be nil.
type Recorder struct {
	collector *Collector
	exporter  *PrometheusExporter
}

// NewRecorder creates a new Recorder
func NewRecorder(collector *Collector, exporter *PrometheusExporter) *Recorder {
	return &Recorder{collector: collector, exporter: exporter}
}

// RecordRateLimited records a request rejected by the rate limiter.
func (r *Recorder) RecordRateLimited() {
	if r.collector != nil {
		r.collector.RecordRateLimited()
	}
	if r.exporter != nil {
		r.exporter.RecordRateLimited()
	}
}

// RecordAnalysis records a completed analysis and its best match.
func (r *Recorder) RecordAnalysis(topCode string) {
	if r.collector != nil {
		r.collector.RecordAnalysis(topCode)
	}
	if r.exporter != nil {
		r.exporter.RecordAnalysis(topCode)
	}
}

// RecordCacheHit records a catalog cache hit.
func (r *Recorder) RecordCacheHit() {
	if r.exporter != nil {
		r.exporter.RecordCacheHit()
	}
}

// RecordCacheMiss records a catalog cache miss.
func (r *Recorder) RecordCacheMiss() {
	if r.exporter != nil {
		r.exporter.RecordCacheMiss()
	}
}

// RecordCacheEviction records an entry removed from the catalog cache.
func (r *Recorder) RecordCacheEviction() {
	if r.exporter != nil {
		r.exporter.RecordCacheEviction()
	}
}

// IncInFlight records a request entering a handler.
func (r *Recorder) IncInFlight() {
	if r.collector != nil {
		r.collector.IncInFlight()
	}
}

// DecInFlight records a request leaving a handler.
func (r *Recorder) DecInFlight() {
	if r.collector != nil {
		r.collector.DecInFlight()
	}
}
