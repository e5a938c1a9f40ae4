package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTransactionsAreTraced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	recorder := tracetest.NewSpanRecorder()
	f.svc.tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	conf := f.createConference(t, "organizer", "GopherCon", 0)
	_, err := f.svc.RegisterForConference(ctx, caller("alice"), conf.WebsafeKey)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "conference registration", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("tx.attempts", 1))
}
