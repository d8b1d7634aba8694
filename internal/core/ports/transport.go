package ports

import (
	"context"

	"interviewroom/internal/core/domain"

	"github.com/pion/rtp"
)

// TransportEngine is the real-time media engine. Codec negotiation, NAT traversal and encoding
// stay behind this boundary.
type TransportEngine interface {
	JoinChannel(ctx context.Context, appID, channel, token string, localID domain.UserID) (TransportSession, error)
	CreateAudioTrack(ctx context.Context) (LocalTrack, error)
	CreateVideoTrack(ctx context.Context) (LocalTrack, error)
}

type TransportSession interface {
	Publish(ctx context.Context, tracks ...LocalTrack) error
	Unpublish(ctx context.Context, tracks ...LocalTrack) error
	Subscribe(ctx context.Context, remoteID domain.UserID, kind domain.MediaKind) (RemoteTrack, error)
	// Events is closed when the session ends.
	Events() <-chan domain.RemoteEvent
	Leave(ctx context.Context) error
}

type LocalTrack interface {
	ID() string
	Kind() domain.MediaKind
	Enabled() bool
	SetEnabled(enabled bool)
	Close() error
}

type RemoteTrack interface {
	ID() string
	Kind() domain.MediaKind
	RemoteID() domain.UserID
	ReadRTP() (*rtp.Packet, error)
	Stop()
}

// Renderer attaches subscribed remote tracks to the UI. Attach returns
// domain.ErrRenderTargetAbsent while the target is not mounted yet.
type Renderer interface {
	Attach(ctx context.Context, track RemoteTrack) error
	Detach(remoteID domain.UserID, kind domain.MediaKind)
}
