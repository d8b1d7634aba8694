package domain

import (
	"fmt"
	"time"
)

type MeetingID string
type UserID string
type JobID string

// MeetingStatus is the status declared by the meeting creator or an admin.
// It is independent of wall-clock time.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingOngoing   MeetingStatus = "ongoing"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// EffectiveState is derived at read time from the declared status and the clock.
// It is never persisted.
type EffectiveState string

const (
	StateScheduled EffectiveState = "scheduled"
	StateOngoing   EffectiveState = "ongoing"
	StateCompleted EffectiveState = "completed"
	StateCancelled EffectiveState = "cancelled"
)

type Meeting struct {
	ID           MeetingID     `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Status       MeetingStatus `json:"status"`
	ChannelName  string        `json:"channel_name,omitempty"`
	Participants []Participant `json:"participants"`
	JobID        JobID         `json:"job_id,omitempty"`
	JobOwnerID   UserID        `json:"job_owner_id,omitempty"`
	CreatedBy    UserID        `json:"created_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at,omitempty"`
}

// Channel returns the transport channel name for the meeting.
func (m *Meeting) Channel() string {
	if m.ChannelName != "" {
		return m.ChannelName
	}
	return fmt.Sprintf("meeting-%s", m.ID)
}

// Duration is the scheduled length of the meeting.
func (m *Meeting) Duration() time.Duration {
	return m.EndTime.Sub(m.StartTime)
}

func (m *Meeting) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("meeting id is required")
	}
	if !m.EndTime.After(m.StartTime) {
		return fmt.Errorf("meeting %s: end time must be after start time", m.ID)
	}
	switch m.Status {
	case MeetingScheduled, MeetingOngoing, MeetingCompleted, MeetingCancelled:
	default:
		return fmt.Errorf("meeting %s: unknown status %q", m.ID, m.Status)
	}
	return nil
}
