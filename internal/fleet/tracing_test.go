package fleet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/example/attendance-tracker/internal/docstore"
	"github.com/example/attendance-tracker/internal/testfixtures"
)

func TestAggregator_ReconcileSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	mem := testfixtures.NewMemoryStore(t)
	store := testfixtures.NewCountingStore(mem)
	seeder := testfixtures.NewSeeder(t, mem)
	seeder.User(testfixtures.WithUserID("good"))
	seeder.User(testfixtures.WithUserID("bad"))
	store.FailSubscribe(docstore.AttendanceCollectionPath("bad"), errors.New("permission denied"))

	agg := New(Config{
		Store:   store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnError: func(ErrorEvent) {},
		Tracer:  provider.Tracer("fleet-test"),
	})
	t.Cleanup(agg.Stop)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := agg.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := agg.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	var reconcile tracetest.SpanStub
	found := false
	for _, span := range exporter.GetSpans() {
		if span.Name == "Aggregator.reconcile" {
			reconcile = span
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected an Aggregator.reconcile span, got %d spans", len(exporter.GetSpans()))
	}

	attrs := make(map[attribute.Key]attribute.Value, len(reconcile.Attributes))
	for _, kv := range reconcile.Attributes {
		attrs[kv.Key] = kv.Value
	}
	if got := attrs["users"].AsInt64(); got != 2 {
		t.Fatalf("expected users=2, got %d", got)
	}
	if got := attrs["users.added"].AsInt64(); got != 2 {
		t.Fatalf("expected users.added=2, got %d", got)
	}
	if got := attrs["subscriptions.failed"].AsInt64(); got != 1 {
		t.Fatalf("expected subscriptions.failed=1, got %d", got)
	}
	if reconcile.Status.Code != codes.Error {
		t.Fatalf("expected error status, got %v", reconcile.Status.Code)
	}
}
