// Package otel publishes goGate metrics through an OpenTelemetry meter.
//
// Counters become Int64ObservableCounters under their Prometheus names. The
// check latency histogram is published as a cumulative
// gogate_check_latency_seconds_bucket gauge labelled by le, plus a _count
// gauge. One callback reads a single snapshot per collection.
//
// The package never owns the MeterProvider; callers pass a Meter.
package otel
