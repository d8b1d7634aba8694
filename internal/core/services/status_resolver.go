package services

import (
	"time"

	"interviewroom/internal/core/domain"
)

// Resolve derives the effective lifecycle state of a meeting at now.
// A declared cancellation always wins; otherwise only the time window counts.
// The window is closed on both ends, so a zero-length meeting is ongoing only at
// the exact start instant and completed right after it.
func Resolve(meeting *domain.Meeting, now time.Time) domain.EffectiveState {
	if meeting.Status == domain.MeetingCancelled {
		return domain.StateCancelled
	}
	if now.Before(meeting.StartTime) {
		return domain.StateScheduled
	}
	if !now.After(meeting.EndTime) {
		return domain.StateOngoing
	}
	return domain.StateCompleted
}

// Joinable reports whether a call for the meeting may still be entered.
func Joinable(state domain.EffectiveState) bool {
	return state == domain.StateScheduled || state == domain.StateOngoing
}
