// Package otel publishes session metrics as OpenTelemetry observable
// instruments.
//
// [NewExporter] registers one Int64ObservableCounter per session counter. The
// login latency histogram is published the way a Prometheus scrape would see
// it: a _bucket counter with an le attribute per bound, plus _count and _sum
// (seconds). One callback reads [sessionguard.Session.MetricsSnapshot] per
// collection. Callers own the MeterProvider.
package otel
