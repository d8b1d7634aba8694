package services

import (
	"context"
	"fmt"
	"sync"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"

	"go.uber.org/zap"
)

type RoomServiceConfig struct {
	Controller ControllerConfig
	Directory  DirectoryOptions
	// StrictMembership rejects users that the participant directory cannot match.
	// Development setups only log a warning.
	StrictMembership bool
}

type RoomDeps struct {
	Meetings    ports.MeetingRepository
	Engine      ports.TransportEngine
	Credentials ports.CredentialStore
	Renderer    ports.Renderer
	Publisher   ports.StatusPublisher
	Metrics     ports.CallMetrics
	Clock       ports.Clock
	Logger      *zap.SugaredLogger
}

// RoomService owns the single call of the process.
type RoomService struct {
	cfg  RoomServiceConfig
	deps RoomDeps

	mu     sync.Mutex
	active *MediaSessionController
}

func NewRoomService(cfg RoomServiceConfig, deps RoomDeps) *RoomService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	return &RoomService{cfg: cfg, deps: deps}
}

// Open returns the controller for meetingID, creating and starting it when no other call is
// in progress. Reopening the active meeting returns the running controller.
func (s *RoomService) Open(ctx context.Context, meetingID domain.MeetingID, user domain.Identity) (*MediaSessionController, error) {
	meeting, err := s.deps.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("get meeting %s: %w", meetingID, err)
	}

	switch Resolve(meeting, s.deps.Clock.Now()) {
	case domain.StateCancelled:
		return nil, domain.ErrMeetingCancelled
	case domain.StateCompleted:
		return nil, domain.ErrMeetingEnded
	}

	directory := NewParticipantDirectory(meeting, s.cfg.Directory)
	if !directory.Contains(user) {
		if s.cfg.StrictMembership {
			return nil, domain.ErrNotParticipant
		}
		s.deps.Logger.Warnw("Opening call for user outside the participant list",
			"meeting_id", meeting.ID,
			"user_id", user.ID,
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		if s.active.Meeting().ID == meeting.ID && s.active.Identity().ID == user.ID {
			return s.active, nil
		}
		switch s.active.Status().State {
		case domain.CallIdle, domain.CallError:
		default:
			return nil, domain.ErrCallInProgress
		}
		if err := s.active.Close(ctx); err != nil {
			return nil, fmt.Errorf("close previous call: %w", err)
		}
		s.active = nil
	}

	ctrl := NewMediaSessionController(s.cfg.Controller, ControllerDeps{
		Meeting:     meeting,
		Directory:   directory,
		Identity:    user,
		Engine:      s.deps.Engine,
		Credentials: s.deps.Credentials,
		Meetings:    s.deps.Meetings,
		Renderer:    s.deps.Renderer,
		Publisher:   s.deps.Publisher,
		Metrics:     s.deps.Metrics,
		Clock:       s.deps.Clock,
		Logger:      s.deps.Logger,
	})
	ctrl.Start(context.Background())
	s.active = ctrl

	s.deps.Logger.Infow("Call room opened",
		"meeting_id", meeting.ID,
		"user_id", user.ID,
		"channel", meeting.Channel(),
	)
	return ctrl, nil
}

func (s *RoomService) Active() (*MediaSessionController, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, domain.ErrNoActiveCall
	}
	return s.active, nil
}

// Close tears down the active call, if any.
func (s *RoomService) Close(ctx context.Context) error {
	s.mu.Lock()
	ctrl := s.active
	s.active = nil
	s.mu.Unlock()

	if ctrl == nil {
		return nil
	}
	return ctrl.Close(ctx)
}
