package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

const storageScopeName = "github.com/wpgraph/wpgraph/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in wpg.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	instrumentedTx
	inner storage.Storage
	txs   metric.Int64Counter
}

// instrumentedTx decorates the Transaction half. Transactions handed to
// RunInTransaction callbacks are wrapped with the same instruments.
type instrumentedTx struct {
	tx     storage.Transaction
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
	inTx   bool
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	return newInstrumentedStorage(s)
}

func newInstrumentedStorage(s storage.Storage) *InstrumentedStorage {
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("wpg.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("wpg.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("wpg.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	txs, _ := m.Int64Counter("wpg.storage.transactions",
		metric.WithDescription("Transactions by outcome"),
	)
	return &InstrumentedStorage{
		instrumentedTx: instrumentedTx{
			tx:     s,
			tracer: Tracer(storageScopeName),
			ops:    ops,
			dur:    dur,
			errs:   errs,
		},
		inner: s,
		txs:   txs,
	}
}

// op starts a span and records a metric for the named storage operation.
func (s *instrumentedTx) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{
		attribute.String("db.operation", name),
		attribute.Bool("wpg.in_tx", s.inTx),
	}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all[0]))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *instrumentedTx) done(ctx context.Context, span trace.Span, start time.Time, err error, name string) {
	ms := float64(time.Since(start).Milliseconds())
	attr := metric.WithAttributes(attribute.String("db.operation", name))
	s.dur.Record(ctx, ms, attr)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, attr)
	}
	span.End()
}

// ── Work items ──────────────────────────────────────────────────────────────

func (s *instrumentedTx) GetItem(ctx context.Context, id int64) (*types.WorkItem, error) {
	ctx, span, t := s.op(ctx, "GetItem", attribute.Int64("wpg.item.id", id))
	v, err := s.tx.GetItem(ctx, id)
	s.done(ctx, span, t, err, "GetItem")
	return v, err
}

func (s *instrumentedTx) ListItems(ctx context.Context, projectID string) ([]*types.WorkItem, error) {
	ctx, span, t := s.op(ctx, "ListItems", attribute.String("wpg.project", projectID))
	v, err := s.tx.ListItems(ctx, projectID)
	span.SetAttributes(attribute.Int("wpg.result.count", len(v)))
	s.done(ctx, span, t, err, "ListItems")
	return v, err
}

func (s *instrumentedTx) CreateItem(ctx context.Context, item *types.WorkItem, actor string) error {
	ctx, span, t := s.op(ctx, "CreateItem",
		attribute.String("wpg.actor", actor),
		attribute.String("wpg.item.type", item.TypeID),
	)
	err := s.tx.CreateItem(ctx, item, actor)
	s.done(ctx, span, t, err, "CreateItem")
	return err
}

func (s *instrumentedTx) SaveItem(ctx context.Context, item *types.WorkItem) error {
	ctx, span, t := s.op(ctx, "SaveItem",
		attribute.Int64("wpg.item.id", item.ID),
		attribute.String("wpg.item.status", item.StatusID),
	)
	err := s.tx.SaveItem(ctx, item)
	s.done(ctx, span, t, err, "SaveItem")
	return err
}

func (s *instrumentedTx) DeleteItem(ctx context.Context, id int64) error {
	ctx, span, t := s.op(ctx, "DeleteItem", attribute.Int64("wpg.item.id", id))
	err := s.tx.DeleteItem(ctx, id)
	s.done(ctx, span, t, err, "DeleteItem")
	return err
}

// ── Statuses ────────────────────────────────────────────────────────────────

func (s *instrumentedTx) GetStatus(ctx context.Context, id string) (*types.Status, error) {
	ctx, span, t := s.op(ctx, "GetStatus", attribute.String("wpg.status.id", id))
	v, err := s.tx.GetStatus(ctx, id)
	s.done(ctx, span, t, err, "GetStatus")
	return v, err
}

func (s *instrumentedTx) ListStatuses(ctx context.Context) ([]*types.Status, error) {
	ctx, span, t := s.op(ctx, "ListStatuses")
	v, err := s.tx.ListStatuses(ctx)
	s.done(ctx, span, t, err, "ListStatuses")
	return v, err
}

func (s *instrumentedTx) CreateStatus(ctx context.Context, status *types.Status) error {
	ctx, span, t := s.op(ctx, "CreateStatus", attribute.String("wpg.status.id", status.ID))
	err := s.tx.CreateStatus(ctx, status)
	s.done(ctx, span, t, err, "CreateStatus")
	return err
}

// ── Relations ───────────────────────────────────────────────────────────────

func (s *instrumentedTx) GetRelation(ctx context.Context, id int64) (*types.Relation, error) {
	ctx, span, t := s.op(ctx, "GetRelation", attribute.Int64("wpg.relation.id", id))
	v, err := s.tx.GetRelation(ctx, id)
	s.done(ctx, span, t, err, "GetRelation")
	return v, err
}

func (s *instrumentedTx) GetRelationsFor(ctx context.Context, id int64, kind types.RelationKind, reverse bool) ([]*types.Relation, error) {
	ctx, span, t := s.op(ctx, "GetRelationsFor",
		attribute.Int64("wpg.item.id", id),
		attribute.String("wpg.relation.kind", string(kind)),
		attribute.Bool("wpg.relation.reverse", reverse),
	)
	v, err := s.tx.GetRelationsFor(ctx, id, kind, reverse)
	span.SetAttributes(attribute.Int("wpg.result.count", len(v)))
	s.done(ctx, span, t, err, "GetRelationsFor")
	return v, err
}

func (s *instrumentedTx) ListRelations(ctx context.Context, kind types.RelationKind) ([]*types.Relation, error) {
	ctx, span, t := s.op(ctx, "ListRelations", attribute.String("wpg.relation.kind", string(kind)))
	v, err := s.tx.ListRelations(ctx, kind)
	s.done(ctx, span, t, err, "ListRelations")
	return v, err
}

func (s *instrumentedTx) AddRelation(ctx context.Context, rel *types.Relation) error {
	ctx, span, t := s.op(ctx, "AddRelation",
		attribute.Int64("wpg.relation.from", rel.FromID),
		attribute.Int64("wpg.relation.to", rel.ToID),
		attribute.String("wpg.relation.kind", string(rel.Kind)),
	)
	err := s.tx.AddRelation(ctx, rel)
	s.done(ctx, span, t, err, "AddRelation")
	return err
}

func (s *instrumentedTx) RemoveRelation(ctx context.Context, id int64) error {
	ctx, span, t := s.op(ctx, "RemoveRelation", attribute.Int64("wpg.relation.id", id))
	err := s.tx.RemoveRelation(ctx, id)
	s.done(ctx, span, t, err, "RemoveRelation")
	return err
}

// ── Events ──────────────────────────────────────────────────────────────────

func (s *instrumentedTx) AddEvent(ctx context.Context, event *types.Event) error {
	ctx, span, t := s.op(ctx, "AddEvent",
		attribute.Int64("wpg.item.id", event.ItemID),
		attribute.String("wpg.event.type", string(event.EventType)),
	)
	err := s.tx.AddEvent(ctx, event)
	s.done(ctx, span, t, err, "AddEvent")
	return err
}

func (s *instrumentedTx) GetEvents(ctx context.Context, itemID int64, limit int) ([]*types.Event, error) {
	ctx, span, t := s.op(ctx, "GetEvents", attribute.Int64("wpg.item.id", itemID))
	v, err := s.tx.GetEvents(ctx, itemID, limit)
	s.done(ctx, span, t, err, "GetEvents")
	return v, err
}

// ── Transactions / lifecycle ────────────────────────────────────────────────

func (s *InstrumentedStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	ctx, span, t := s.op(ctx, "RunInTransaction")
	err := s.inner.RunInTransaction(ctx, func(tx storage.Transaction) error {
		wrapped := s.instrumentedTx
		wrapped.tx = tx
		wrapped.inTx = true
		return fn(&wrapped)
	})
	outcome := "commit"
	if err != nil {
		outcome = "rollback"
	}
	s.txs.Add(ctx, 1, metric.WithAttributes(attribute.String("wpg.tx.outcome", outcome)))
	s.done(ctx, span, t, err, "RunInTransaction")
	return err
}

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}

// Unwrap returns the underlying storage.
func (s *InstrumentedStorage) Unwrap() storage.Storage {
	return s.inner
}
