package domain

import "errors"

var (
	ErrMeetingNotFound    = errors.New("meeting not found")
	ErrMeetingCancelled   = errors.New("meeting cancelled")
	ErrMeetingEnded       = errors.New("meeting has ended")
	ErrNotParticipant     = errors.New("current user is not a participant of this meeting")
	ErrInvalidCredential  = errors.New("invalid session credential")
	ErrCredentialExpired  = errors.New("session credential expired")
	ErrCallInProgress     = errors.New("a call is already in progress")
	ErrNoActiveCall       = errors.New("no active call")
	ErrDeviceUnavailable  = errors.New("capture device unavailable")
	ErrJoinTimeout        = errors.New("joining the call timed out")
	ErrInvalidTransition  = errors.New("operation not allowed in current call state")
	ErrRenderTargetAbsent = errors.New("render target not mounted")
	ErrControllerClosed   = errors.New("call controller closed")
	ErrKeyNotFound        = errors.New("key not found")
	ErrConnectionLost     = errors.New("connection to the call was lost")
)

// IsAuthError reports whether a join failure requires a fresh credential.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredential) || errors.Is(err, ErrCredentialExpired)
}
