package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer and returns a cleanup
// function restoring the previous writer, level and format.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	originalLevel := currentLevel.Load()
	originalFormat, _ := currentFormat.Load().(string)
	reconfigure()

	return buf, func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		currentLevel.Store(originalLevel)
		currentFormat.Store(originalFormat)
		reconfigure()
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		visible []string
		hidden  []string
	}{
		{"DEBUG", []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{"INFO", []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{"WARN", []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{"ERROR", []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf, cleanup := captureOutput()
			defer cleanup()

			SetLevel(tt.level)
			Debug("debug msg")
			Info("info msg")
			Warn("warn msg")
			Error("error msg")

			out := buf.String()
			for _, s := range tt.visible {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.hidden {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, l)

	l, err = ParseLevel(" debug ")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, l)

	_, err = ParseLevel("TRACE")
	assert.Error(t, err)
}

func TestSetLevelIgnoresInvalid(t *testing.T) {
	_, cleanup := captureOutput()
	defer cleanup()

	SetLevel("ERROR")
	SetLevel("bogus")
	assert.Equal(t, LevelError, GetLevel())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestTextFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("text")
	Info("transfer done", KeyBytes, 4096, KeyPath, "dir/with space.bin")

	out := buf.String()
	assert.Contains(t, out, "[INFO] transfer done")
	assert.Contains(t, out, "bytes=4096")
	assert.Contains(t, out, `path="dir/with space.bin"`)
}

func TestTextHandlerOrdering(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false)
	l := slog.New(h).With(KeyCommand, "cp")

	l.Info("chunk done", KeyDurationMs, 1.25, KeyBytes, 100, KeyOffset, int64(200), KeyPath, "a.bin", "note", "")

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(line,
		`chunk done command=cp path=a.bin offset=200 bytes=100 duration_ms=1.250 note=""`), line)
}

func TestTextHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, nil, false)
	slog.New(h).WithGroup("s3").With(KeyBucket, "b").Debug("hidden")
	slog.New(h).WithGroup("s3").With(KeyBucket, "b").Warn("retry", KeyAttempt, 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden", "INFO is the default threshold")
	assert.Contains(t, out, "[WARN] retry s3.bucket=b s3.attempt=2")
}

func TestTextHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, nil, true)
	slog.New(h).Error("failed", KeyError, "boom")

	out := buf.String()
	assert.Contains(t, out, colorRed+"ERROR"+colorReset)
	assert.Contains(t, out, colorRed+KeyError+colorReset+"=boom")
}

func TestJSONFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	SetFormat("json")
	Info("buffered transfer complete", KeyOffset, int64(8), KeyStatus, "short_eof")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "buffered transfer complete", entry["msg"])
	assert.Equal(t, float64(8), entry["offset"])
	assert.Equal(t, "short_eof", entry["status"])
}

func TestContextLogging(t *testing.T) {
	t.Run("LogContextInjectsFields", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("json")

		lc := NewLogContext("cat").WithBackend("memory").WithPath("a.bin").WithTrace("abc123", "xyz789")
		InfoCtx(WithContext(context.Background(), lc), "read", "extra_field", "value")

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
		assert.Equal(t, "abc123", entry[KeyTraceID])
		assert.Equal(t, "xyz789", entry[KeySpanID])
		assert.Equal(t, "cat", entry[KeyCommand])
		assert.Equal(t, "memory", entry[KeyBackend])
		assert.Equal(t, "a.bin", entry[KeyPath])
		assert.Equal(t, "value", entry["extra_field"])
	})

	t.Run("ContextWithoutLogContext", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")
		require.NotPanics(t, func() {
			DebugCtx(context.Background(), "plain message")
			WarnCtx(nil, "nil context") //nolint:staticcheck
		})
		assert.Contains(t, buf.String(), "plain message")
		assert.Contains(t, buf.String(), "nil context")
	})
}

func TestLogContext(t *testing.T) {
	lc := NewLogContext("put")
	assert.Equal(t, "put", lc.Command)
	assert.False(t, lc.StartTime.IsZero())
	assert.GreaterOrEqual(t, lc.DurationMs(), 0.0)

	lc2 := lc.WithPath("x")
	assert.Equal(t, "x", lc2.Path)
	assert.Empty(t, lc.Path)

	var nilLC *LogContext
	assert.Nil(t, nilLC.Clone())
	assert.Nil(t, nilLC.WithBackend("s3"))
	assert.Equal(t, 0.0, nilLC.DurationMs())
}

func TestFieldHelpers(t *testing.T) {
	t.Run("Handle", func(t *testing.T) {
		attr := Handle(7)
		assert.Equal(t, KeyHandle, attr.Key)
		assert.Equal(t, uint64(7), attr.Value.Uint64())
	})

	t.Run("ErrorCodeIsHex", func(t *testing.T) {
		attr := ErrorCode(38)
		assert.Equal(t, "0x00000026", attr.Value.String())
	})

	t.Run("ErrHandlesNil", func(t *testing.T) {
		assert.Equal(t, "", Err(nil).Key)
	})

	t.Run("ErrFormatsError", func(t *testing.T) {
		attr := Err(assert.AnError)
		assert.Equal(t, KeyError, attr.Key)
		assert.Contains(t, attr.Value.String(), "assert.AnError")
	})
}

func TestPrintfStyleLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("DEBUG")
	Debugf("depth %d chunk %s", 10, "64KiB")
	Errorf("failed: %v", "boom")

	assert.Contains(t, buf.String(), "depth 10 chunk 64KiB")
	assert.Contains(t, buf.String(), "failed: boom")
}

func TestConcurrentLogging(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range 50 {
				Info("concurrent", "worker", id, "iteration", j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 400)
}

func TestInit(t *testing.T) {
	t.Run("FileOutput", func(t *testing.T) {
		_, cleanup := captureOutput()
		defer cleanup()

		path := filepath.Join(t.TempDir(), "ofio.log")
		require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
		Info("to file")
		require.NoError(t, Init(Config{Output: "stderr"}))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, cleanup := captureOutput()
		defer cleanup()

		assert.Error(t, Init(Config{Level: "LOUD"}))
	})

	t.Run("UnwritableFile", func(t *testing.T) {
		err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
		assert.Error(t, err)
	})
}

func BenchmarkLogDisabled(b *testing.B) {
	_, cleanup := captureOutput()
	defer cleanup()
	SetLevel("ERROR")

	b.ResetTimer()
	for range b.N {
		Debug("disabled", KeyOffset, 0)
	}
}

func BenchmarkLogJSON(b *testing.B) {
	_, cleanup := captureOutput()
	defer cleanup()
	SetLevel("INFO")
	SetFormat("json")

	b.ResetTimer()
	for range b.N {
		Info("bench", KeyOffset, 4096, KeyBytes, 65536)
	}
}
