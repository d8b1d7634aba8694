package ports

import (
	"context"
	"time"

	"interviewroom/internal/core/domain"
)

// CredentialStore holds the single admission credential of the process.
// Implementations never fail; storage problems read as "no credential".
type CredentialStore interface {
	Save(ctx context.Context, token string, ttlMinutes int)
	Get(ctx context.Context) (string, bool)
	Credential(ctx context.Context) (domain.SessionCredential, bool)
	Clear(ctx context.Context)
	HasValid(ctx context.Context) bool
}

// StatusPublisher receives every controller status change.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, status domain.CallStatus) error
}

type CallMetrics interface {
	CallStarted()
	CallEnded(duration time.Duration)
	JoinSucceeded(duration time.Duration)
	JoinFailed(reason string)
	CaptureFailed(kind domain.MediaKind)
	RemoteParticipants(count int)
	LeaveNotifyFailed()
}
