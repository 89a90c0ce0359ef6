// Package prometheus serves client session metrics in Prometheus text
// exposition format.
//
// Related counters share a family and differ by one label, for example
//
//	gosession_refreshes_total{outcome="discarded"} 1
//	gosession_requests_total{auth="passthrough"} 4
//
// The refresh latency histogram appears only when latency histograms are
// enabled. Mount [Exporter.Handler] wherever the scraper expects it.
package prometheus
