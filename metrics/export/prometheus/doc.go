// Package prometheus exports goGate metrics through client_golang.
//
// [Collector] reads one snapshot per scrape and emits const metrics, so it
// can be registered on any prom.Registry and served with promhttp. Counter
// names are prefixed gogate_*_total; the single histogram is
// gogate_check_latency_seconds.
//
// Collector never registers itself in the global registry.
package prometheus
