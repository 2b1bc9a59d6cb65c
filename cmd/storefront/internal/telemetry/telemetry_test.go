package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/config"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.ObservabilityConfig{ServiceName: "test"}, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), TracerRoleSync, "rolesync.Test",
		attribute.String(AttrUserID, "u-1"))
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "rolesync.Test", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String(AttrUserID, "u-1"))
}

func TestReconcileMetrics(t *testing.T) {
	m, err := NewReconcileMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSync(ctx, 1, 2, 0, 3.5)
	m.RecordUserCreated(ctx)
	m.RecordMirrorFailure(ctx, "AssignRoleToUser")

	var nilMetrics *ReconcileMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordSync(ctx, 1, 1, 1, 1)
		nilMetrics.RecordUserCreated(ctx)
		nilMetrics.RecordMirrorFailure(ctx, "CreateClientRole")
	})
}
