package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"

	"go.uber.org/zap"
)

// Feed partitions meetings for dashboard display. Cancelled meetings are shown as past.
type Feed struct {
	Upcoming []*domain.Meeting
	Ongoing  []*domain.Meeting
	Past     []*domain.Meeting
}

func (f Feed) Len() int {
	return len(f.Upcoming) + len(f.Ongoing) + len(f.Past)
}

// Categorize keeps the input order inside each bucket.
func Categorize(meetings []*domain.Meeting, now time.Time) Feed {
	var feed Feed
	for _, m := range meetings {
		switch Resolve(m, now) {
		case domain.StateScheduled:
			feed.Upcoming = append(feed.Upcoming, m)
		case domain.StateOngoing:
			feed.Ongoing = append(feed.Ongoing, m)
		default:
			feed.Past = append(feed.Past, m)
		}
	}
	return feed
}

// FilterByUser keeps meetings the user created, participates in, or (for employers) owns the job of.
func FilterByUser(meetings []*domain.Meeting, user domain.Identity) []*domain.Meeting {
	return filterByUser(meetings, user, DefaultDirectoryOptions())
}

func filterByUser(meetings []*domain.Meeting, user domain.Identity, opts DirectoryOptions) []*domain.Meeting {
	var out []*domain.Meeting
	for _, m := range meetings {
		if visibleTo(m, user, opts) {
			out = append(out, m)
		}
	}
	return out
}

func visibleTo(m *domain.Meeting, user domain.Identity, opts DirectoryOptions) bool {
	if user.ID != "" && m.CreatedBy == user.ID {
		return true
	}
	if user.IsEmployer() && user.ID != "" && m.JobOwnerID == user.ID {
		return true
	}
	return NewParticipantDirectory(m, opts).Contains(user)
}

type FeedEntry struct {
	Meeting       *domain.Meeting       `json:"meeting"`
	State         domain.EffectiveState `json:"state"`
	TimeRemaining string                `json:"time_remaining"`
	StartsAt      string                `json:"starts_at"`
	Duration      string                `json:"duration"`
	Host          string                `json:"host,omitempty"`
}

type Dashboard struct {
	Upcoming    []FeedEntry `json:"upcoming"`
	Ongoing     []FeedEntry `json:"ongoing"`
	Past        []FeedEntry `json:"past"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// FeedService builds the dashboard view of a user's meetings.
type FeedService struct {
	meetings  ports.MeetingRepository
	clock     ports.Clock
	formatter *Formatter
	opts      DirectoryOptions
	logger    *zap.SugaredLogger
}

func NewFeedService(
	meetings ports.MeetingRepository,
	clock ports.Clock,
	formatter *Formatter,
	opts DirectoryOptions,
	logger *zap.SugaredLogger,
) *FeedService {
	if formatter == nil {
		formatter = defaultFormatter
	}
	return &FeedService{
		meetings:  meetings,
		clock:     clock,
		formatter: formatter,
		opts:      opts,
		logger:    logger,
	}
}

func (s *FeedService) Dashboard(ctx context.Context, user domain.Identity) (*Dashboard, error) {
	all, err := s.meetings.ListMeetings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}

	now := s.clock.Now()
	mine := filterByUser(all, user, s.opts)
	feed := Categorize(mine, now)

	upcoming := sortedCopy(feed.Upcoming, func(a, b *domain.Meeting) bool { return a.StartTime.Before(b.StartTime) })
	ongoing := sortedCopy(feed.Ongoing, func(a, b *domain.Meeting) bool { return a.EndTime.Before(b.EndTime) })
	past := sortedCopy(feed.Past, func(a, b *domain.Meeting) bool { return a.EndTime.After(b.EndTime) })

	s.logger.Debugw("Built meeting dashboard",
		"user_id", user.ID,
		"total", len(all),
		"visible", len(mine),
		"upcoming", len(upcoming),
		"ongoing", len(ongoing),
		"past", len(past),
	)

	return &Dashboard{
		Upcoming:    s.entries(upcoming, now),
		Ongoing:     s.entries(ongoing, now),
		Past:        s.entries(past, now),
		GeneratedAt: now,
	}, nil
}

// Visible reports whether user may see m on the dashboard.
func (s *FeedService) Visible(m *domain.Meeting, user domain.Identity) bool {
	return visibleTo(m, user, s.opts)
}

// Now is the feed's notion of the current time.
func (s *FeedService) Now() time.Time {
	return s.clock.Now()
}

// Entry decorates a single meeting for display.
func (s *FeedService) Entry(m *domain.Meeting, now time.Time) FeedEntry {
	entry := FeedEntry{
		Meeting:       m,
		State:         Resolve(m, now),
		TimeRemaining: s.formatter.TimeRemaining(m.StartTime, now),
		StartsAt:      s.formatter.DateTime(m.StartTime),
		Duration:      s.formatter.Duration(m.StartTime, m.EndTime),
	}
	if host, ok := NewParticipantDirectory(m, s.opts).Host(); ok {
		entry.Host = host.Name
	}
	return entry
}

func (s *FeedService) entries(meetings []*domain.Meeting, now time.Time) []FeedEntry {
	out := make([]FeedEntry, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, s.Entry(m, now))
	}
	return out
}

func sortedCopy(in []*domain.Meeting, less func(a, b *domain.Meeting) bool) []*domain.Meeting {
	out := make([]*domain.Meeting, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
