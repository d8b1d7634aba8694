package repositories

import (
	"context"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"
	"interviewroom/pkg/cache"
)

const (
	meetingKeyPrefix = "meeting:"
	meetingListKey   = "meetings"
)

// CachedMeetingRepository keeps backend answers for a short TTL. Dashboard refreshes and
// repeated call opens for the same meeting do not reach the backend each time.
type CachedMeetingRepository struct {
	next     ports.MeetingRepository
	meetings *cache.Cache[*domain.Meeting]
	lists    *cache.Cache[[]*domain.Meeting]
}

func NewCachedMeetingRepository(next ports.MeetingRepository, ttl time.Duration) *CachedMeetingRepository {
	return &CachedMeetingRepository{
		next:     next,
		meetings: cache.New[*domain.Meeting](ttl),
		lists:    cache.New[[]*domain.Meeting](ttl),
	}
}

func (r *CachedMeetingRepository) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	return r.meetings.GetOrLoad(ctx, meetingKeyPrefix+string(id), func(ctx context.Context) (*domain.Meeting, error) {
		return r.next.GetMeeting(ctx, id)
	})
}

func (r *CachedMeetingRepository) ListMeetings(ctx context.Context) ([]*domain.Meeting, error) {
	return r.lists.GetOrLoad(ctx, meetingListKey, r.next.ListMeetings)
}

func (r *CachedMeetingRepository) NotifyLeave(ctx context.Context, meetingID domain.MeetingID, userID domain.UserID, reason string) error {
	return r.next.NotifyLeave(ctx, meetingID, userID, reason)
}

// Invalidate drops every cached answer.
func (r *CachedMeetingRepository) Invalidate() {
	r.meetings.Invalidate(meetingKeyPrefix)
	r.lists.Invalidate(meetingListKey)
}

func (r *CachedMeetingRepository) Close() {
	r.meetings.Stop()
	r.lists.Stop()
}
