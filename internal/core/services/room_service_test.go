package services

import (
	"context"
	"testing"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRoomService(t *testing.T, strict bool, meetings ...*domain.Meeting) (*RoomService, *mockMeetingRepository) {
	t.Helper()
	repo := &mockMeetingRepository{}
	for _, m := range meetings {
		repo.On("GetMeeting", mock.Anything, m.ID).Return(m, nil)
	}
	repo.On("GetMeeting", mock.Anything, mock.Anything).Return(nil, domain.ErrMeetingNotFound)
	repo.On("NotifyLeave", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	clock := newFakeClock(callNow)
	svc := NewRoomService(RoomServiceConfig{
		Controller:       DefaultControllerConfig(),
		Directory:        DefaultDirectoryOptions(),
		StrictMembership: strict,
	}, RoomDeps{
		Meetings:    repo,
		Engine:      newFakeEngine(),
		Credentials: NewSessionTokenStore(newFakeKV(), clock, zap.NewNop().Sugar()),
		Clock:       clock,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return svc, repo
}

func TestRoomService_OpenAndReuse(t *testing.T) {
	m := interviewMeeting(callNow)
	svc, _ := newTestRoomService(t, true, m)
	ctx := context.Background()

	_, err := svc.Active()
	assert.ErrorIs(t, err, domain.ErrNoActiveCall)

	ctrl, err := svc.Open(ctx, m.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, domain.CallIdle, ctrl.Status().State)

	again, err := svc.Open(ctx, m.ID, candidate)
	require.NoError(t, err)
	assert.Same(t, ctrl, again)

	active, err := svc.Active()
	require.NoError(t, err)
	assert.Same(t, ctrl, active)
}

func TestRoomService_RejectsClosedMeetings(t *testing.T) {
	cancelled := interviewMeeting(callNow)
	cancelled.ID = "m-cancelled"
	cancelled.Status = domain.MeetingCancelled

	ended := interviewMeeting(callNow)
	ended.ID = "m-ended"
	ended.StartTime = callNow.Add(-2 * time.Hour)
	ended.EndTime = callNow.Add(-time.Hour)

	svc, _ := newTestRoomService(t, true, cancelled, ended)
	ctx := context.Background()

	_, err := svc.Open(ctx, cancelled.ID, candidate)
	assert.ErrorIs(t, err, domain.ErrMeetingCancelled)

	_, err = svc.Open(ctx, ended.ID, candidate)
	assert.ErrorIs(t, err, domain.ErrMeetingEnded)

	_, err = svc.Open(ctx, "missing", candidate)
	assert.ErrorIs(t, err, domain.ErrMeetingNotFound)
}

func TestRoomService_Membership(t *testing.T) {
	m := interviewMeeting(callNow)
	stranger := domain.Identity{ID: "someone", UserType: domain.UserTypeCandidate}

	strict, _ := newTestRoomService(t, true, m)
	_, err := strict.Open(context.Background(), m.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	lenient, _ := newTestRoomService(t, false, m)
	_, err = lenient.Open(context.Background(), m.ID, stranger)
	assert.NoError(t, err)
}

func TestRoomService_MembershipIgnoresOwnership(t *testing.T) {
	m := interviewMeeting(callNow)
	m.JobOwnerID = "recruiter-5"
	m.CreatedBy = "recruiter-5"
	owner := domain.Identity{ID: "recruiter-5", Name: "Rita Vance", UserType: domain.UserTypeEmployer}

	svc, _ := newTestRoomService(t, true, m)
	_, err := svc.Open(context.Background(), m.ID, owner)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	ctrl, err := svc.Open(context.Background(), m.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, m.ID, ctrl.Meeting().ID)
}

func TestRoomService_SingleCallInProgress(t *testing.T) {
	first := interviewMeeting(callNow)
	second := interviewMeeting(callNow)
	second.ID = "m-2"

	svc, _ := newTestRoomService(t, true, first, second)
	ctx := context.Background()

	ctrl, err := svc.Open(ctx, first.ID, candidate)
	require.NoError(t, err)
	require.NoError(t, ctrl.RequestJoin(ctx))
	require.Equal(t, domain.CallAwaitingCredential, ctrl.Status().State)

	_, err = svc.Open(ctx, second.ID, candidate)
	assert.ErrorIs(t, err, domain.ErrCallInProgress)

	require.NoError(t, ctrl.Leave(ctx))
	next, err := svc.Open(ctx, second.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.Meeting().ID)

	select {
	case <-ctrl.Done():
	case <-time.After(time.Second):
		t.Fatal("replaced controller was not closed")
	}
}
