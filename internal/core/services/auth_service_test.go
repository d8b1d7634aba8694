package services

import (
	"testing"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService() (*AuthService, *fakeClock) {
	clock := newFakeClock(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC))
	return NewAuthService("test-secret", "interviewroom", time.Hour, 60*time.Minute, clock), clock
}

func TestAuthService_IdentityRoundTrip(t *testing.T) {
	auth, _ := newTestAuthService()
	user := domain.Identity{ID: "emp-1", Name: "Grace", Email: "grace@acme.io", UserType: domain.UserTypeEmployer, Role: domain.RoleHost}

	token, err := auth.IssueIdentityToken(user)
	require.NoError(t, err)

	got, err := auth.ValidateIdentityToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestAuthService_IdentityTokenErrors(t *testing.T) {
	auth, clock := newTestAuthService()

	_, err := auth.IssueIdentityToken(domain.Identity{})
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, err := auth.IssueIdentityToken(domain.Identity{ID: "u"})
	require.NoError(t, err)

	other := NewAuthService("other-secret", "interviewroom", time.Hour, 0, clock)
	_, err = other.ValidateIdentityToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	clock.Advance(2 * time.Hour)
	_, err = auth.ValidateIdentityToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = auth.ValidateIdentityToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_CallCredential(t *testing.T) {
	auth, clock := newTestAuthService()
	meeting := &domain.Meeting{ID: "m-1"}

	cred, err := auth.IssueCallCredential(meeting, "cand-1", 0)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), cred.ExpiresAt)

	claims, err := auth.ValidateCallCredential(cred.Token, "meeting-m-1", "cand-1")
	require.NoError(t, err)
	assert.Equal(t, domain.MeetingID("m-1"), claims.MeetingID)

	_, err = auth.ValidateCallCredential(cred.Token, "meeting-m-2", "cand-1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = auth.ValidateCallCredential(cred.Token, "meeting-m-1", "someone-else")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	_, err = auth.ValidateCallCredential("not-a-jwt", "meeting-m-1", "cand-1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)

	clock.Advance(61 * time.Minute)
	_, err = auth.ValidateCallCredential(cred.Token, "meeting-m-1", "cand-1")
	assert.ErrorIs(t, err, domain.ErrCredentialExpired)
}
