// Package prometheus exposes session metrics through client_golang.
//
// [Exporter] is a prometheus.Collector: register it with any registry, or
// mount [Exporter.Handler] for a standalone scrape endpoint. Counter names are
// prefixed sessionguard_ and end in _total; the single histogram is
// sessionguard_login_latency_seconds.
//
// The package never registers with the global default registry.
package prometheus
