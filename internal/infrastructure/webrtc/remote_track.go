package webrtc

import (
	"sync"

	"interviewroom/internal/core/domain"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

type remoteTrack struct {
	remoteID domain.UserID
	kind     domain.MediaKind
	track    *webrtc.TrackRemote
	receiver *webrtc.RTPReceiver
	stopOnce sync.Once
}

func newRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) *remoteTrack {
	return &remoteTrack{
		remoteID: domain.UserID(track.StreamID()),
		kind:     mediaKindOf(track.Kind()),
		track:    track,
		receiver: receiver,
	}
}

func (t *remoteTrack) ID() string              { return t.track.ID() }
func (t *remoteTrack) Kind() domain.MediaKind  { return t.kind }
func (t *remoteTrack) RemoteID() domain.UserID { return t.remoteID }
func (t *remoteTrack) Codec() string           { return t.track.Codec().MimeType }
func (t *remoteTrack) SSRC() webrtc.SSRC       { return t.track.SSRC() }

// ReadRTP blocks for the next packet. It fails once the track is stopped.
func (t *remoteTrack) ReadRTP() (*rtp.Packet, error) {
	pkt, _, err := t.track.ReadRTP()
	return pkt, err
}

func (t *remoteTrack) Stop() {
	t.stopOnce.Do(func() {
		_ = t.receiver.Stop()
	})
}

func mediaKindOf(kind webrtc.RTPCodecType) domain.MediaKind {
	if kind == webrtc.RTPCodecTypeVideo {
		return domain.MediaVideo
	}
	return domain.MediaAudio
}
