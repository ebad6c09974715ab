package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "ofio", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestResourceAttributes(t *testing.T) {
	cfg := DefaultConfig()
	assert.Len(t, cfg.resourceAttributes(), 2, "pipeline attributes are omitted when unset")

	cfg.Backend = "s3"
	cfg.Depth = 8
	cfg.ChunkSize = 65536

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range cfg.resourceAttributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "ofio", attrs["service.name"].AsString())
	assert.Equal(t, "s3", attrs[AttrBackend].AsString())
	assert.Equal(t, int64(8), attrs[AttrDepth].AsInt64())
	assert.Equal(t, int64(65536), attrs[AttrChunkSize].AsInt64())
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
	assert.NotNil(t, Tracer())
}

func TestTracerReturnsNoOp(t *testing.T) {
	setTracer(nil, nil, false)

	tr := Tracer()
	require.NotNil(t, tr)

	_, span := tr.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestSpanHelpersWithoutInit(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	defer span.End()

	require.NotPanics(t, func() {
		AddEvent(newCtx, "test.event")
		RecordError(newCtx, nil)
		RecordError(newCtx, errors.New("test error"))
		SetStatus(newCtx, codes.Ok, "success")
		SetAttributes(newCtx, FSOffset(42))
	})

	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
	assert.NotNil(t, SpanFromContext(ctx))
}

func TestStartPipelineSpan(t *testing.T) {
	ctx, span := StartPipelineSpan(context.Background(), "read", FSOffset(4096), FSCount(1024))
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestStartStorageSpan(t *testing.T) {
	ctx, span := StartStorageSpan(context.Background(), "s3", "get_object", Bucket("data"), StorageKey("a/b"))
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr attribute.KeyValue
		key  string
		want any
	}{
		{"Operation", FSOperation("write"), AttrOperation, "write"},
		{"Handle", FSHandle(7), AttrHandle, int64(7)},
		{"Path", FSPath("/tmp/a"), AttrPath, "/tmp/a"},
		{"Offset", FSOffset(1 << 40), AttrOffset, int64(1 << 40)},
		{"Count", FSCount(65536), AttrCount, int64(65536)},
		{"Size", FSSize(10), AttrSize, int64(10)},
		{"Mode", FSMode("rw"), AttrMode, "rw"},
		{"Status", FSStatus("short_eof"), AttrStatus, "short_eof"},
		{"Bytes", BytesTransferred(12), AttrBytes, int64(12)},
		{"Depth", PipelineDepth(10), AttrDepth, int64(10)},
		{"ChunkSize", ChunkSize(4096), AttrChunkSize, int64(4096)},
		{"Submissions", Submissions(3), AttrSubmissions, int64(3)},
		{"Backend", Backend("badger"), AttrBackend, "badger"},
		{"Bucket", Bucket("b"), AttrBucket, "b"},
		{"Key", StorageKey("k"), AttrKey, "k"},
		{"Region", Region("eu-west-1"), AttrRegion, "eu-west-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, string(tt.attr.Key))
			assert.Equal(t, tt.want, tt.attr.Value.AsInterface())
		})
	}
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(1.0).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(DefaultProfilingConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileType(t *testing.T) {
	for _, pt := range DefaultProfileTypes {
		_, err := parseProfileType(pt)
		assert.NoError(t, err, pt)
	}
	_, err := parseProfileType("heap")
	assert.Error(t, err)
}
