package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	registration metric.Registration
}

// NewExporter registers instruments on meter that observe client.
func NewExporter(meter metric.Meter, client *goSession.Client) (*Exporter, error) {
	if client == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, client)
}

// NewExporterFromSource registers instruments observing any snapshot source.
func NewExporterFromSource(meter metric.Meter, source internaldefs.Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	obs := &observation{
		counters: make(map[string]metric.Int64ObservableCounter, len(internaldefs.Families)+1),
		attrs:    make(map[string][]metric.ObserveOption),
	}
	instruments := make([]metric.Observable, 0, len(internaldefs.Families)+3)

	families := append(append([]internaldefs.Family(nil), internaldefs.Families...), internaldefs.AuditDropped)
	for _, f := range families {
		ins, err := meter.Int64ObservableCounter(f.Name, metric.WithDescription(f.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", f.Name, err)
		}
		obs.counters[f.Name] = ins
		instruments = append(instruments, ins)
		if f.LabelKey == "" {
			continue
		}
		opts := make([]metric.ObserveOption, len(f.Series))
		for i, s := range f.Series {
			opts[i] = metric.WithAttributes(attribute.String(f.LabelKey, s.Value))
		}
		obs.attrs[f.Name] = opts
	}

	var err error
	name := internaldefs.Latency.Name
	if obs.buckets, err = meter.Int64ObservableGauge(name+"_bucket",
		metric.WithDescription(internaldefs.Latency.Help+" Cumulative count per upper bound."),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("gauge %s_bucket: %w", name, err)
	}
	if obs.count, err = meter.Int64ObservableGauge(name+"_count",
		metric.WithDescription(internaldefs.Latency.Help+" Total samples."),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("gauge %s_count: %w", name, err)
	}
	instruments = append(instruments, obs.buckets, obs.count)
	for i, le := range internaldefs.LatencyBounds {
		obs.bounds[i] = metric.WithAttributes(attribute.String("le", le))
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		internaldefs.Walk(source, observerVisitor{obs: obs, o: o})
		return nil
	}, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return &Exporter{registration: reg}, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

// observation holds the instruments and precomputed attribute sets. It is
// read-only once registration completes.
type observation struct {
	counters map[string]metric.Int64ObservableCounter
	attrs    map[string][]metric.ObserveOption
	buckets  metric.Int64ObservableGauge
	count    metric.Int64ObservableGauge
	bounds   [len(internaldefs.LatencyBounds)]metric.ObserveOption
}

type observerVisitor struct {
	obs *observation
	o   metric.Observer
}

func (v observerVisitor) Counter(f internaldefs.Family, points []internaldefs.Point) {
	ins, ok := v.obs.counters[f.Name]
	if !ok {
		return
	}
	attrs := v.obs.attrs[f.Name]
	for i, p := range points {
		if i < len(attrs) {
			v.o.ObserveInt64(ins, int64(p.Value), attrs[i])
			continue
		}
		v.o.ObserveInt64(ins, int64(p.Value))
	}
}

func (v observerVisitor) Histogram(_, _ string, cumulative [len(internaldefs.LatencyBounds)]uint64) {
	for i, n := range cumulative {
		v.o.ObserveInt64(v.obs.buckets, int64(n), v.obs.bounds[i])
	}
	v.o.ObserveInt64(v.obs.count, int64(cumulative[len(cumulative)-1]))
}
