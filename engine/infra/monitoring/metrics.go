package monitoring

import (
	"context"
	"fmt"

	"github.com/aethermart/dataplane/engine/audit"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/gateway"
	"github.com/aethermart/dataplane/engine/ingest"
	"github.com/aethermart/dataplane/engine/validate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	mutationsMetric          = "aethermart_mutations_total"
	mutationRejectionsMetric = "aethermart_mutation_rejections_total"
	auditRecordsMetric       = "aethermart_audit_records_total"
	ingestStagesMetric       = "aethermart_ingest_stages_total"
	ingestRowsMetric         = "aethermart_ingest_rows_total"
	ingestDurationMetric     = "aethermart_ingest_stage_duration_seconds"

	labelKind      = "kind"
	labelOperation = "operation"
	labelOutcome   = "outcome"
	labelReason    = "reason"
	labelStream    = "stream"
	labelStage     = "stage"
	labelTable     = "table"
	labelStatus    = "status"
	labelResult    = "result"

	outcomeCommitted = "committed"
	outcomeRejected  = "rejected"
	outcomeError     = "error"

	resultValid   = "valid"
	resultInvalid = "invalid"
)

var ingestDurationBuckets = []float64{
	0.01,
	0.05,
	0.1,
	0.25,
	0.5,
	1,
	2.5,
	5,
	10,
	30,
	60,
}

func createInt64Counter(meter metric.Meter, name, description string) (metric.Int64Counter, error) {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create counter %q: %w", name, err)
	}
	return counter, nil
}

func createFloat64Histogram(
	meter metric.Meter,
	name string,
	description string,
	unit string,
	buckets []float64,
) (metric.Float64Histogram, error) {
	options := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit(unit),
	}
	if len(buckets) > 0 {
		options = append(options, metric.WithExplicitBucketBoundaries(buckets...))
	}
	histogram, err := meter.Float64Histogram(name, options...)
	if err != nil {
		return nil, fmt.Errorf("create histogram %q: %w", name, err)
	}
	return histogram, nil
}

func withLabel(attrs []attribute.KeyValue, key, value string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+1)
	out = append(out, attrs...)
	out = append(out, attribute.String(key, value))
	return out
}

// MutationMetrics counts gateway outcomes and the audit records
// committed mutations produce. A nil receiver records nothing, so
// callers hold one unconditionally and leave it unset when monitoring
// is disabled.
type MutationMetrics struct {
	mutations  metric.Int64Counter
	rejections metric.Int64Counter
	records    metric.Int64Counter
}

// NewMutationMetrics builds the gateway outcome instruments on the
// given meter. A nil meter yields a nil receiver, which is valid.
func NewMutationMetrics(meter metric.Meter) (*MutationMetrics, error) {
	if meter == nil {
		return nil, nil
	}
	mutations, err := createInt64Counter(
		meter,
		mutationsMetric,
		"Total mutations applied through the gateway",
	)
	if err != nil {
		return nil, err
	}
	rejections, err := createInt64Counter(
		meter,
		mutationRejectionsMetric,
		"Total mutations rejected by validation",
	)
	if err != nil {
		return nil, err
	}
	records, err := createInt64Counter(
		meter,
		auditRecordsMetric,
		"Total audit records appended by committed mutations",
	)
	if err != nil {
		return nil, err
	}
	return &MutationMetrics{
		mutations:  mutations,
		rejections: rejections,
		records:    records,
	}, nil
}

func (m *MutationMetrics) Committed(ctx context.Context, kind entity.Kind, op gateway.Op, records []*audit.Record) {
	if m == nil {
		return
	}
	attrs := mutationAttributes(kind, op)
	if m.mutations != nil {
		m.mutations.Add(ctx, 1, metric.WithAttributes(withLabel(attrs, labelOutcome, outcomeCommitted)...))
	}
	if m.records != nil {
		for _, rec := range records {
			if rec == nil {
				continue
			}
			m.records.Add(ctx, 1, metric.WithAttributes(
				attribute.String(labelStream, string(rec.Stream)),
			))
		}
	}
}

func (m *MutationMetrics) Rejected(ctx context.Context, kind entity.Kind, op gateway.Op, reason validate.Reason) {
	if m == nil {
		return
	}
	attrs := mutationAttributes(kind, op)
	if m.mutations != nil {
		m.mutations.Add(ctx, 1, metric.WithAttributes(withLabel(attrs, labelOutcome, outcomeRejected)...))
	}
	if m.rejections != nil {
		m.rejections.Add(ctx, 1, metric.WithAttributes(
			attribute.String(labelKind, string(kind)),
			attribute.String(labelReason, string(reason)),
		))
	}
}

func (m *MutationMetrics) Failed(ctx context.Context, kind entity.Kind, op gateway.Op) {
	if m == nil {
		return
	}
	if m.mutations != nil {
		attrs := mutationAttributes(kind, op)
		m.mutations.Add(ctx, 1, metric.WithAttributes(withLabel(attrs, labelOutcome, outcomeError)...))
	}
}

func mutationAttributes(kind entity.Kind, op gateway.Op) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(labelKind, string(kind)),
		attribute.String(labelOperation, string(op)),
	}
}

type ingestObserver struct {
	stages   metric.Int64Counter
	rows     metric.Int64Counter
	duration metric.Float64Histogram
}

var _ ingest.Observer = (*ingestObserver)(nil)

// NewIngestObserver builds an ingest.Observer that feeds pipeline run
// entries into the meter. A nil meter yields an observer that records
// nothing.
func NewIngestObserver(meter metric.Meter) (ingest.Observer, error) {
	if meter == nil {
		return noopIngestObserver{}, nil
	}
	stages, err := createInt64Counter(
		meter,
		ingestStagesMetric,
		"Total ingest stage executions",
	)
	if err != nil {
		return nil, err
	}
	rows, err := createInt64Counter(
		meter,
		ingestRowsMetric,
		"Total rows processed by ingest stages",
	)
	if err != nil {
		return nil, err
	}
	duration, err := createFloat64Histogram(
		meter,
		ingestDurationMetric,
		"Histogram of ingest stage duration",
		"s",
		ingestDurationBuckets,
	)
	if err != nil {
		return nil, err
	}
	return &ingestObserver{
		stages:   stages,
		rows:     rows,
		duration: duration,
	}, nil
}

func (o *ingestObserver) StageRecorded(ctx context.Context, entry *ingest.RunEntry) {
	if o == nil || entry == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(labelStage, string(entry.Stage)),
		attribute.String(labelTable, entry.Table),
	}
	if o.stages != nil {
		o.stages.Add(ctx, 1, metric.WithAttributes(withLabel(attrs, labelStatus, string(entry.Status))...))
	}
	if o.rows != nil {
		if entry.Valid > 0 {
			o.rows.Add(ctx, entry.Valid, metric.WithAttributes(withLabel(attrs, labelResult, resultValid)...))
		}
		if entry.Invalid > 0 {
			o.rows.Add(ctx, entry.Invalid, metric.WithAttributes(withLabel(attrs, labelResult, resultInvalid)...))
		}
	}
	if o.duration != nil && !entry.FinishedAt.Before(entry.StartedAt) {
		o.duration.Record(ctx, entry.FinishedAt.Sub(entry.StartedAt).Seconds(), metric.WithAttributes(attrs...))
	}
}

type noopIngestObserver struct{}

var _ ingest.Observer = noopIngestObserver{}

func (noopIngestObserver) StageRecorded(context.Context, *ingest.RunEntry) {}
