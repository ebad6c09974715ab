package prometheus

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ofio/pkg/aio"
	"github.com/marmos91/ofio/pkg/metrics"
)

func withRegistry(t *testing.T) {
	t.Helper()
	metrics.Reset()
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)
}

func TestDisabledReturnsNil(t *testing.T) {
	metrics.Reset()

	assert.Nil(t, NewAIOMetrics())
	assert.Nil(t, NewStorageMetrics("memory"))
	assert.Nil(t, NewS3Metrics())
	assert.Nil(t, NewBadgerMetrics())
}

func TestAIOMetrics(t *testing.T) {
	withRegistry(t)

	m := NewAIOMetrics()
	require.NotNil(t, m)

	m.ObserveRequest("read", 4096, aio.StatusOK, 2*time.Millisecond)
	m.ObserveRequest("read", 100, aio.StatusShortEOF, time.Millisecond)
	m.RecordSubmission("read", "pending")
	m.RecordSpuriousWake("read")
	m.SetInFlight("read", 3)

	impl := m.(*aioMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.requestsTotal.WithLabelValues("read", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.requestsTotal.WithLabelValues("read", "short_eof")))
	assert.Equal(t, 4196.0, testutil.ToFloat64(impl.bytesTotal.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.submissions.WithLabelValues("read", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.spuriousWakes.WithLabelValues("read")))
	assert.Equal(t, 3.0, testutil.ToFloat64(impl.inFlight.WithLabelValues("read")))
}

func TestStorageMetrics(t *testing.T) {
	withRegistry(t)

	m := NewStorageMetrics("local")
	require.NotNil(t, m)

	m.ObserveOperation("read_async", 512, time.Millisecond, nil)
	m.ObserveOperation("read_async", 0, time.Millisecond, errors.New("boom"))

	impl := m.(*storageMetrics)
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.operationsTotal.WithLabelValues("local", "read_async", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(impl.operationsTotal.WithLabelValues("local", "read_async", "error")))
	assert.Equal(t, 512.0, testutil.ToFloat64(impl.bytesTotal.WithLabelValues("local", "read_async")))
}

func TestS3AndBadgerMetrics(t *testing.T) {
	withRegistry(t)

	s3m := NewS3Metrics()
	require.NotNil(t, s3m)
	s3m.ObserveRequest("get_object", 20*time.Millisecond, nil)
	s3m.RecordBytes("download", 1024)
	s3m.RecordBytes("download", 0)

	bm := NewBadgerMetrics()
	require.NotNil(t, bm)
	bm.RecordConflict()
	bm.RecordDBSize(100, 200)

	expected := `
# HELP ofio_s3_bytes_transferred_total Total bytes transferred to and from S3
# TYPE ofio_s3_bytes_transferred_total counter
ofio_s3_bytes_transferred_total{direction="download"} 1024
# HELP ofio_badger_size_bytes BadgerDB on-disk size by component
# TYPE ofio_badger_size_bytes gauge
ofio_badger_size_bytes{component="lsm"} 100
ofio_badger_size_bytes{component="vlog"} 200
`
	err := testutil.GatherAndCompare(metrics.GetRegistry(), strings.NewReader(expected),
		"ofio_s3_bytes_transferred_total", "ofio_badger_size_bytes")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(bm.(*badgerMetrics).conflicts))
}
