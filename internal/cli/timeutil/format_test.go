package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{850 * time.Microsecond, "850µs"},
		{12400 * time.Microsecond, "12.4ms"},
		{3210 * time.Millisecond, "3.21s"},
		{125 * time.Second, "2m 5s"},
		{time.Hour + 3*time.Minute, "1h 3m 0s"},
		{-2 * time.Second, "-2.00s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(time.Time{}))

	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
	assert.Equal(t, "2024-03-09 14:05:07", FormatTime(ts))
	assert.Equal(t, "2024-03-09 14:05:07", FormatTime(ts.UTC()))
}
