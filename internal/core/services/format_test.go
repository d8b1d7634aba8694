package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestFormatTimeRemaining(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		until time.Duration
		want  string
	}{
		{"days and hours", 2*24*time.Hour + 3*time.Hour + 15*time.Minute, "2 days 3 hours"},
		{"single day", 24*time.Hour + 10*time.Minute, "1 day"},
		{"days skip zero hours", 2*24*time.Hour + 5*time.Minute, "2 days"},
		{"hour and minutes", time.Hour + 5*time.Minute + 30*time.Second, "1 hour 5 minutes"},
		{"whole hours", 3 * time.Hour, "3 hours"},
		{"minutes only", 12*time.Minute + 59*time.Second, "12 minutes"},
		{"one minute", time.Minute, "1 minute"},
		{"under a minute", 59 * time.Second, "less than a minute"},
		{"at start", 0, "in progress"},
		{"already started", -time.Hour, "in progress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimeRemaining(now.Add(tt.until), now))
		})
	}
}

func TestCalculateDuration(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "45 minutes", CalculateDuration(start, start.Add(45*time.Minute)))
	assert.Equal(t, "1 hour 30 minutes", CalculateDuration(start, start.Add(90*time.Minute)))
	assert.Equal(t, "0 minutes", CalculateDuration(start, start))
}

func TestFormatDateTime(t *testing.T) {
	ts := time.Date(2026, 5, 4, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "Mon, May 4, 2026 2:30 PM", FormatDateTime(ts))
}

func TestFormatter_Spanish(t *testing.T) {
	f := NewFormatter(language.Spanish, nil)
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "1 día y 2 horas", f.TimeRemaining(now.Add(26*time.Hour), now))
	assert.Equal(t, "en curso", f.TimeRemaining(now, now))
	assert.Equal(t, "menos de un minuto", f.TimeRemaining(now.Add(30*time.Second), now))
	assert.Equal(t, "04/05/2026 09:00", f.DateTime(now))
}

func TestNewFormatterFor(t *testing.T) {
	f, err := NewFormatterFor("en-GB", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "5 minutes", f.Duration(time.Time{}, time.Time{}.Add(5*time.Minute)))

	_, err = NewFormatterFor("not a tag!", "")
	assert.Error(t, err)

	_, err = NewFormatterFor("en", "Mars/Olympus")
	assert.Error(t, err)
}
