// Package otel publishes client session metrics through an OpenTelemetry
// Meter.
//
// Each counter family becomes one Int64ObservableCounter whose data points
// carry the family label as an attribute, so refresh outcomes arrive as
// gosession_refreshes_total with outcome=renewed, invalidated or discarded.
// The refresh latency histogram is reported as cumulative bucket gauges
// keyed by the le attribute. The caller owns the Meter.
package otel
