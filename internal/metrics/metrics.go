// Package metrics records pipeline counters and stage timings through
// OpenTelemetry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"

	reviewerr "github.com/reviewchain/reviewchain/pkg/errors"
)

// InstrumentationName scopes every instrument and span.
const InstrumentationName = "github.com/reviewchain/reviewchain"

// OutcomeSuccess is the outcome attribute of calls that returned nil.
const OutcomeSuccess = "success"

// Instrument names.
const (
	SubmissionsTotal  = "reviewchain.submissions.total"
	TransactionsTotal = "reviewchain.transactions.total"
	UploadsTotal      = "reviewchain.uploads.total"
	UploadBytes       = "reviewchain.uploads.bytes"
	RollbacksTotal    = "reviewchain.rollbacks.total"
	CacheLookupsTotal = "reviewchain.cache.lookups.total"
	StageDuration     = "reviewchain.stage.duration"
)

// Metrics holds the instruments used by the pipeline.
type Metrics struct {
	tracer trace.Tracer

	submissions   metric.Int64Counter
	transactions  metric.Int64Counter
	uploads       metric.Int64Counter
	uploadBytes   metric.Int64Histogram
	rollbacks     metric.Int64Counter
	cacheLookups  metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// New creates the instruments on meter. A nil tracer uses the global one.
func New(meter metric.Meter, tracer trace.Tracer) (*Metrics, error) {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	m := &Metrics{tracer: tracer}

	var err error
	if m.submissions, err = meter.Int64Counter(SubmissionsTotal,
		metric.WithDescription("Review submissions by outcome"),
		metric.WithUnit("{submission}"),
	); err != nil {
		return nil, err
	}
	if m.transactions, err = meter.Int64Counter(TransactionsTotal,
		metric.WithDescription("Contract transactions by method and outcome"),
		metric.WithUnit("{transaction}"),
	); err != nil {
		return nil, err
	}
	if m.uploads, err = meter.Int64Counter(UploadsTotal,
		metric.WithDescription("Evidence uploads by backend and outcome"),
		metric.WithUnit("{file}"),
	); err != nil {
		return nil, err
	}
	if m.uploadBytes, err = meter.Int64Histogram(UploadBytes,
		metric.WithDescription("Size of uploaded evidence files"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.rollbacks, err = meter.Int64Counter(RollbacksTotal,
		metric.WithDescription("Uploaded files removed after a failed submission"),
		metric.WithUnit("{file}"),
	); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = meter.Int64Counter(CacheLookupsTotal,
		metric.WithDescription("Read cache lookups by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	if m.stageDuration, err = meter.Float64Histogram(StageDuration,
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 180),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Outcome maps err to the outcome attribute: "success" or its error code.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return reviewerr.Code(err)
}

// StartStage opens a span for a pipeline stage. The returned func ends the
// span and records the stage duration.
func (m *Metrics) StartStage(ctx context.Context, stage string) (context.Context, func(error)) {
	if m == nil {
		return ctx, func(error) {}
	}
	ctx, span := m.tracer.Start(ctx, stage)
	start := time.Now()
	return ctx, func(err error) {
		outcome := Outcome(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		m.stageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("outcome", outcome),
		))
	}
}

// RecordSubmission counts a finished submission.
func (m *Metrics) RecordSubmission(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", Outcome(err))))
}

// RecordTransaction counts a contract write.
func (m *Metrics) RecordTransaction(ctx context.Context, method string, err error) {
	if m == nil {
		return
	}
	m.transactions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", Outcome(err)),
	))
}

// RecordUpload counts one uploaded file. Size is only recorded on success.
func (m *Metrics) RecordUpload(ctx context.Context, backend string, size int64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", Outcome(err)),
	)
	m.uploads.Add(ctx, 1, attrs)
	if err == nil {
		m.uploadBytes.Record(ctx, size, metric.WithAttributes(attribute.String("backend", backend)))
	}
}

// RecordRollback counts files removed by a rollback.
func (m *Metrics) RecordRollback(ctx context.Context, files int, err error) {
	if m == nil || files == 0 {
		return
	}
	m.rollbacks.Add(ctx, int64(files), metric.WithAttributes(attribute.String("outcome", Outcome(err))))
}

// RecordCache counts a read cache lookup.
func (m *Metrics) RecordCache(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Provider owns an in-process meter provider whose readings are pulled on
// demand with Snapshot.
type Provider struct {
	*Metrics

	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewProvider builds a Provider. The meter is registered globally so
// libraries that use otel.Meter report into the same reader.
func NewProvider(serviceName string) (*Provider, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	m, err := New(mp.Meter(InstrumentationName), otel.Tracer(serviceName))
	if err != nil {
		return nil, fmt.Errorf("creating instruments: %w", err)
	}
	return &Provider{Metrics: m, reader: reader, provider: mp}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// StageStat aggregates the recorded durations of one stage and outcome.
type StageStat struct {
	Count   uint64
	Seconds float64
}

// Snapshot is a point-in-time copy of the collected metrics. Series keys
// are the instrument name followed by sorted attributes, for example
// "reviewchain.submissions.total{outcome=success}".
type Snapshot struct {
	Counters map[string]int64
	Stages   map[string]StageStat
}

// Counter returns the value of a series, or 0.
func (s Snapshot) Counter(key string) int64 {
	return s.Counters[key]
}

// CacheHitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no cache lookups have occurred.
func (s Snapshot) CacheHitRate() float64 {
	hits := s.Counters[CacheLookupsTotal+"{result=hit}"]
	total := hits + s.Counters[CacheLookupsTotal+"{result=miss}"]
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Snapshot collects the current readings.
func (p *Provider) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Counters: map[string]int64{}, Stages: map[string]StageStat{}}
	if p == nil {
		return snap, nil
	}

	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return snap, fmt.Errorf("collecting metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					snap.Counters[SeriesKey(m.Name, dp.Attributes)] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					key := SeriesKey(m.Name, dp.Attributes)
					st := snap.Stages[key]
					st.Count += dp.Count
					st.Seconds += dp.Sum
					snap.Stages[key] = st
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					snap.Counters[SeriesKey(m.Name, dp.Attributes)] += dp.Sum
				}
			}
		}
	}
	return snap, nil
}

// SeriesKey renders a series name with its attributes in key order.
func SeriesKey(name string, set attribute.Set) string {
	kvs := set.ToSlice()
	if len(kvs) == 0 {
		return name
	}
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	sort.Strings(parts)
	return name + "{" + strings.Join(parts, ",") + "}"
}
