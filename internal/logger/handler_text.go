package logger

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// leadingKeys are printed first, in this order, so the fields that identify
// a transfer line up across lines. Other attributes follow as logged.
var leadingKeys = []string{
	KeyCommand,
	KeyBackend,
	KeyPath,
	KeyHandle,
	KeyOperation,
	KeyOffset,
	KeyCount,
	KeyBytes,
	KeyStatus,
	KeyDepth,
	KeyChunkSize,
}

// ColorTextHandler writes one line per record:
//
//	[2006-01-02 15:04:05.000] [INFO] message command=cat path=a.bin offset=0 bytes=4096 duration_ms=1.250
type ColorTextHandler struct {
	level    slog.Leveler
	w        io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	prefix   string
	useColor bool
}

// NewColorTextHandler creates a handler writing to w.
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, useColor bool) *ColorTextHandler {
	h := &ColorTextHandler{w: w, mu: &sync.Mutex{}, useColor: useColor}
	if opts != nil {
		h.level = opts.Level
	}
	return h
}

func (h *ColorTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return level >= slog.LevelInfo
	}
	return level >= h.level.Level()
}

func (h *ColorTextHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if !a.Equal(slog.Attr{}) {
			a.Key = h.prefix + a.Key
			attrs = append(attrs, a)
		}
		return true
	})
	sortLeading(attrs)

	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(r.Time.Format("2006-01-02 15:04:05.000"))
	sb.WriteString("] [")
	sb.WriteString(h.paint(levelColor(r.Level), levelName(r.Level)))
	sb.WriteString("] ")
	sb.WriteString(r.Message)
	for _, a := range attrs {
		sb.WriteByte(' ')
		color := colorCyan
		if a.Key == KeyError {
			color = colorRed
		}
		sb.WriteString(h.paint(color, a.Key))
		sb.WriteByte('=')
		sb.WriteString(formatValue(a.Value.Resolve()))
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

// sortLeading moves leadingKeys to the front without reordering the rest.
func sortLeading(attrs []slog.Attr) {
	rank := func(a slog.Attr) int {
		if i := slices.Index(leadingKeys, a.Key); i >= 0 {
			return i
		}
		return len(leadingKeys)
	}
	slices.SortStableFunc(attrs, func(a, b slog.Attr) int {
		return rank(a) - rank(b)
	})
}

func (h *ColorTextHandler) paint(color, s string) string {
	if !h.useColor {
		return s
	}
	return color + s + colorReset
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

func levelColor(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return colorGray
	case l < slog.LevelWarn:
		return colorGreen
	case l < slog.LevelError:
		return colorYellow
	default:
		return colorRed
	}
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', 3, 64)
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return v.String()
	}
}

func (h *ColorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *ColorTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
