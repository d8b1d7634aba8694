package webrtc

import (
	"context"
	"sort"
	"sync"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// ViewStats describes one remote track bound to a view.
type ViewStats struct {
	RemoteID  domain.UserID    `json:"remote_id"`
	Kind      domain.MediaKind `json:"kind"`
	TrackID   string           `json:"track_id"`
	Packets   uint64           `json:"packets"`
	Bytes     uint64           `json:"bytes"`
	Keyframes uint64           `json:"keyframes"`
	// Ready flips on the first audio packet or the first video keyframe.
	Ready        bool      `json:"ready"`
	LastPacketAt time.Time `json:"last_packet_at,omitempty"`
}

type view struct {
	stats  ViewStats
	cancel context.CancelFunc
}

// TrackRenderer binds remote tracks to views mounted by the UI and consumes their RTP stream.
// With auto mount every remote has a view as soon as its track arrives.
type TrackRenderer struct {
	mu        sync.Mutex
	autoMount bool
	mounted   map[domain.UserID]bool
	views     map[trackKey]*view
	now       func() time.Time
	logger    *zap.SugaredLogger
}

var _ ports.Renderer = (*TrackRenderer)(nil)

func NewTrackRenderer(autoMount bool, logger *zap.SugaredLogger) *TrackRenderer {
	return &TrackRenderer{
		autoMount: autoMount,
		mounted:   make(map[domain.UserID]bool),
		views:     make(map[trackKey]*view),
		now:       time.Now,
		logger:    logger,
	}
}

// Mount marks the view for a remote participant as present.
func (r *TrackRenderer) Mount(remoteID domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mounted[remoteID] = true
}

// Unmount removes the view and stops consuming the remote's tracks.
func (r *TrackRenderer) Unmount(remoteID domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.mounted, remoteID)
	for key, v := range r.views {
		if key.remoteID == remoteID {
			v.cancel()
			delete(r.views, key)
		}
	}
}

func (r *TrackRenderer) Attach(ctx context.Context, track ports.RemoteTrack) error {
	key := trackKey{remoteID: track.RemoteID(), kind: track.Kind()}

	r.mu.Lock()
	if !r.autoMount && !r.mounted[key.remoteID] {
		r.mu.Unlock()
		return domain.ErrRenderTargetAbsent
	}
	if old := r.views[key]; old != nil {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	v := &view{
		stats:  ViewStats{RemoteID: key.remoteID, Kind: key.kind, TrackID: track.ID()},
		cancel: cancel,
	}
	r.views[key] = v
	r.mu.Unlock()

	go r.consume(ctx, key, v, track)
	return nil
}

func (r *TrackRenderer) Detach(remoteID domain.UserID, kind domain.MediaKind) {
	key := trackKey{remoteID: remoteID, kind: kind}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v := r.views[key]; v != nil {
		v.cancel()
		delete(r.views, key)
	}
}

// Views returns a snapshot ordered by remote and kind.
func (r *TrackRenderer) Views() []ViewStats {
	r.mu.Lock()
	out := make([]ViewStats, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v.stats)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RemoteID != out[j].RemoteID {
			return out[i].RemoteID < out[j].RemoteID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func (r *TrackRenderer) consume(ctx context.Context, key trackKey, v *view, track ports.RemoteTrack) {
	codec := webrtc.MimeTypeVP8
	if c, ok := track.(interface{ Codec() string }); ok {
		codec = c.Codec()
	}

	for ctx.Err() == nil {
		pkt, err := track.ReadRTP()
		if err != nil {
			r.logger.Debugw("Remote track ended", "remote_id", key.remoteID, "kind", key.kind, "error", err)
			return
		}

		r.mu.Lock()
		if r.views[key] != v {
			r.mu.Unlock()
			return
		}
		v.stats.Packets++
		v.stats.Bytes += uint64(len(pkt.Payload))
		v.stats.LastPacketAt = r.now()
		switch {
		case key.kind == domain.MediaAudio:
			v.stats.Ready = true
		case IsKeyframe(codec, pkt):
			v.stats.Keyframes++
			v.stats.Ready = true
		}
		r.mu.Unlock()
	}
}
