package services

import (
	"testing"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func meetingAt(id string, start, end time.Time, status domain.MeetingStatus) *domain.Meeting {
	return &domain.Meeting{ID: domain.MeetingID(id), StartTime: start, EndTime: end, Status: status}
}

func TestResolve(t *testing.T) {
	start := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name   string
		status domain.MeetingStatus
		now    time.Time
		want   domain.EffectiveState
	}{
		{"before start", domain.MeetingScheduled, start.Add(-time.Minute), domain.StateScheduled},
		{"at start", domain.MeetingScheduled, start, domain.StateOngoing},
		{"inside window", domain.MeetingScheduled, start.Add(30 * time.Minute), domain.StateOngoing},
		{"at end", domain.MeetingScheduled, end, domain.StateOngoing},
		{"after end", domain.MeetingScheduled, end.Add(time.Nanosecond), domain.StateCompleted},
		{"declared ongoing but future", domain.MeetingOngoing, start.Add(-time.Hour), domain.StateScheduled},
		{"declared completed but inside window", domain.MeetingCompleted, start.Add(time.Minute), domain.StateOngoing},
		{"cancelled before start", domain.MeetingCancelled, start.Add(-time.Hour), domain.StateCancelled},
		{"cancelled inside window", domain.MeetingCancelled, start.Add(time.Minute), domain.StateCancelled},
		{"cancelled after end", domain.MeetingCancelled, end.Add(time.Hour), domain.StateCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := meetingAt("m", start, end, tt.status)
			assert.Equal(t, tt.want, Resolve(m, tt.now))
		})
	}
}

func TestResolve_ZeroLengthWindow(t *testing.T) {
	at := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)
	m := meetingAt("m", at, at, domain.MeetingScheduled)

	assert.Equal(t, domain.StateScheduled, Resolve(m, at.Add(-time.Nanosecond)))
	assert.Equal(t, domain.StateOngoing, Resolve(m, at))
	assert.Equal(t, domain.StateCompleted, Resolve(m, at.Add(time.Nanosecond)))
}

func TestResolve_IsPure(t *testing.T) {
	start := time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)
	m := meetingAt("m", start, start.Add(time.Hour), domain.MeetingScheduled)
	now := start.Add(10 * time.Minute)

	first := Resolve(m, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Resolve(m, now))
	}
	assert.Equal(t, domain.MeetingScheduled, m.Status)
}

func TestJoinable(t *testing.T) {
	assert.True(t, Joinable(domain.StateScheduled))
	assert.True(t, Joinable(domain.StateOngoing))
	assert.False(t, Joinable(domain.StateCompleted))
	assert.False(t, Joinable(domain.StateCancelled))
}
