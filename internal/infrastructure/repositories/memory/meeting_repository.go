package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"interviewroom/internal/core/domain"

	"gopkg.in/yaml.v2"
)

// Departure records a NotifyLeave call.
type Departure struct {
	MeetingID domain.MeetingID
	UserID    domain.UserID
	Reason    string
	At        time.Time
}

// MeetingRepository serves meetings from memory. It stands in for the backend in development
// and tests.
type MeetingRepository struct {
	mu         sync.RWMutex
	meetings   map[domain.MeetingID]*domain.Meeting
	departures []Departure
}

func NewMeetingRepository(meetings ...*domain.Meeting) *MeetingRepository {
	r := &MeetingRepository{meetings: make(map[domain.MeetingID]*domain.Meeting)}
	for _, m := range meetings {
		r.meetings[m.ID] = m
	}
	return r
}

// Put inserts or replaces a meeting after validating it.
func (r *MeetingRepository) Put(m *domain.Meeting) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meetings[m.ID] = m
	return nil
}

func (r *MeetingRepository) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.meetings[id]
	if !ok {
		return nil, domain.ErrMeetingNotFound
	}
	return clone(m), nil
}

// ListMeetings returns meetings ordered by start time.
func (r *MeetingRepository) ListMeetings(ctx context.Context) ([]*domain.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Meeting, 0, len(r.meetings))
	for _, m := range r.meetings {
		out = append(out, clone(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

func (r *MeetingRepository) NotifyLeave(ctx context.Context, meetingID domain.MeetingID, userID domain.UserID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.meetings[meetingID]; !ok {
		return domain.ErrMeetingNotFound
	}
	r.departures = append(r.departures, Departure{
		MeetingID: meetingID,
		UserID:    userID,
		Reason:    reason,
		At:        time.Now(),
	})
	return nil
}

func (r *MeetingRepository) Departures() []Departure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Departure(nil), r.departures...)
}

func clone(m *domain.Meeting) *domain.Meeting {
	c := *m
	c.Participants = append([]domain.Participant(nil), m.Participants...)
	return &c
}

type seedFile struct {
	Meetings []seedMeeting `yaml:"meetings"`
}

type seedMeeting struct {
	ID           string            `yaml:"id"`
	Title        string            `yaml:"title"`
	Description  string            `yaml:"description"`
	Start        string            `yaml:"start"`
	End          string            `yaml:"end"`
	Status       string            `yaml:"status"`
	Channel      string            `yaml:"channel"`
	JobID        string            `yaml:"job_id"`
	JobOwnerID   string            `yaml:"job_owner_id"`
	CreatedBy    string            `yaml:"created_by"`
	Participants []seedParticipant `yaml:"participants"`
}

type seedParticipant struct {
	UserID   string `yaml:"user_id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Avatar   string `yaml:"avatar"`
	Role     string `yaml:"role"`
	IsHost   bool   `yaml:"is_host"`
	UserType string `yaml:"user_type"`
}

// LoadSeedFile reads meetings from a YAML file. Times are RFC 3339.
func LoadSeedFile(path string) ([]*domain.Meeting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) ([]*domain.Meeting, error) {
	var f seedFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	meetings := make([]*domain.Meeting, 0, len(f.Meetings))
	for i, s := range f.Meetings {
		m, err := s.toDomain()
		if err != nil {
			return nil, fmt.Errorf("meeting #%d: %w", i, err)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, nil
}

func (s seedMeeting) toDomain() (*domain.Meeting, error) {
	start, err := time.Parse(time.RFC3339, s.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, s.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	status := domain.MeetingStatus(s.Status)
	if status == "" {
		status = domain.MeetingScheduled
	}

	m := &domain.Meeting{
		ID:          domain.MeetingID(s.ID),
		Title:       s.Title,
		Description: s.Description,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		ChannelName: s.Channel,
		JobID:       domain.JobID(s.JobID),
		JobOwnerID:  domain.UserID(s.JobOwnerID),
		CreatedBy:   domain.UserID(s.CreatedBy),
	}
	for _, p := range s.Participants {
		role := domain.ParticipantRole(p.Role)
		if role == "" {
			role = domain.RoleAttendee
		}
		m.Participants = append(m.Participants, domain.Participant{
			UserID:   domain.UserID(p.UserID),
			Name:     p.Name,
			Email:    p.Email,
			Avatar:   p.Avatar,
			Role:     role,
			IsHost:   p.IsHost,
			UserType: domain.UserType(p.UserType),
		})
	}
	return m, nil
}
