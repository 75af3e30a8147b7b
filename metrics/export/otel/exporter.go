package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("otel export: nil meter")
	ErrNilSource = errors.New("otel export: nil metrics source")
)

// Source is the read side of an Engine. *goGate.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goGate.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter observes one Source snapshot per collection cycle.
type Exporter struct {
	source Source
	reg    metric.Registration

	counters map[goGate.MetricID]metric.Int64ObservableCounter
	buckets  map[goGate.MetricID]metric.Int64ObservableGauge
	counts   map[goGate.MetricID]metric.Int64ObservableGauge
	dropped  metric.Int64ObservableCounter

	// le holds one attribute set per histogram bucket, "+Inf" last.
	le []metric.ObserveOption
}

// NewExporter registers the goGate instruments on meter. Close
// unregisters them.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[goGate.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
		buckets:  make(map[goGate.MetricID]metric.Int64ObservableGauge, len(internaldefs.HistogramDefs)),
		counts:   make(map[goGate.MetricID]metric.Int64ObservableGauge, len(internaldefs.HistogramDefs)),
	}
	for _, bound := range internaldefs.HistogramBounds {
		e.le = append(e.le, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", bound))))
	}

	var instruments []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		instruments = append(instruments, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		bucket, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("count gauge %s: %w", def.Name, err)
		}
		e.buckets[def.ID] = bucket
		e.counts[def.ID] = count
		instruments = append(instruments, bucket, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.dropped = dropped
	instruments = append(instruments, dropped)

	if e.reg, err = meter.RegisterCallback(e.observe, instruments...); err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snapshot.Counters[id]))
	}
	for id, bucket := range e.buckets {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[id]))
		for i, le := range e.le {
			o.ObserveInt64(bucket, int64(cumulative[i]), le)
		}
		o.ObserveInt64(e.counts[id], int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback. It is safe on a nil Exporter.
func (e *Exporter) Close() error {
	if e == nil || e.reg == nil {
		return nil
	}
	return e.reg.Unregister()
}
