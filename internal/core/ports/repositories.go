package ports

import (
	"context"
	"time"

	"interviewroom/internal/core/domain"
)

// MeetingRepository is the backend of record for meetings. The coordinator only reads meetings;
// NotifyLeave is a best-effort departure notice.
type MeetingRepository interface {
	GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error)
	ListMeetings(ctx context.Context) ([]*domain.Meeting, error)
	NotifyLeave(ctx context.Context, meetingID domain.MeetingID, userID domain.UserID, reason string) error
}

// KeyValueStore is the persistence behind the session token store.
// Get returns domain.ErrKeyNotFound for missing keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Clock interface {
	Now() time.Time
}
