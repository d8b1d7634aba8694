package webrtc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

type trackKey struct {
	remoteID domain.UserID
	kind     domain.MediaKind
}

// session is one joined channel. The read loop owns the events channel and closes it when the
// signaling connection ends.
type session struct {
	localID domain.UserID
	pc      *webrtc.PeerConnection
	sig     *signalClient

	events    chan domain.RemoteEvent
	closed    chan struct{}
	closeOnce sync.Once

	// negMu serializes offer/answer exchanges in both directions.
	negMu   sync.Mutex
	answers chan webrtc.SessionDescription

	mu      sync.Mutex
	senders map[string]*webrtc.RTPSender
	waiters map[trackKey]chan *remoteTrack
	arrived map[trackKey]*remoteTrack

	logger *zap.SugaredLogger
}

var _ ports.TransportSession = (*session)(nil)

func newSession(localID domain.UserID, pc *webrtc.PeerConnection, sig *signalClient, logger *zap.SugaredLogger) *session {
	s := &session{
		localID: localID,
		pc:      pc,
		sig:     sig,
		events:  make(chan domain.RemoteEvent, 64),
		closed:  make(chan struct{}),
		answers: make(chan webrtc.SessionDescription, 1),
		senders: make(map[string]*webrtc.RTPSender),
		waiters: make(map[trackKey]chan *remoteTrack),
		arrived: make(map[trackKey]*remoteTrack),
		logger:  logger,
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := s.sig.send(msgCandidate, candidatePayload{Candidate: c.ToJSON()}); err != nil {
			s.logger.Debugw("Failed to send ICE candidate", "error", err)
		}
	})
	pc.OnTrack(s.onTrack)
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Infow("Peer connection state changed", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			_ = s.sig.close()
		}
	})
	return s
}

func (s *session) Events() <-chan domain.RemoteEvent { return s.events }

func (s *session) readLoop(members []channelMember) {
	defer close(s.events)

	for _, m := range members {
		for _, kind := range m.Kinds {
			s.emit(domain.RemoteEvent{Type: domain.RemotePublished, RemoteID: m.UserID, Kind: kind})
		}
	}

	for {
		msg, err := s.sig.read(time.Time{})
		if err != nil {
			select {
			case <-s.closed:
			default:
				s.logger.Warnw("Signaling connection lost", "error", err)
			}
			return
		}
		s.dispatch(msg)
	}
}

func (s *session) dispatch(msg signalMessage) {
	switch msg.Type {
	case msgAnswer:
		var p sdpPayload
		if err := decode(msg, &p); err != nil {
			s.logger.Warnw("Malformed answer", "error", err)
			return
		}
		select {
		case s.answers <- webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}:
		default:
			s.logger.Warnw("Dropping unexpected answer")
		}

	case msgOffer:
		var p sdpPayload
		if err := decode(msg, &p); err != nil {
			s.logger.Warnw("Malformed offer", "error", err)
			return
		}
		go s.answerOffer(p.SDP)

	case msgCandidate:
		var p candidatePayload
		if err := decode(msg, &p); err != nil {
			s.logger.Warnw("Malformed candidate", "error", err)
			return
		}
		if err := s.pc.AddICECandidate(p.Candidate); err != nil {
			s.logger.Debugw("Failed to add ICE candidate", "error", err)
		}

	case msgPublished, msgUnpublished, msgLeft:
		var p trackPayload
		if err := decode(msg, &p); err != nil || p.UserID == "" {
			s.logger.Warnw("Malformed remote event", "type", msg.Type, "error", err)
			return
		}
		ev := domain.RemoteEvent{RemoteID: p.UserID, Kind: p.Kind}
		switch msg.Type {
		case msgPublished:
			ev.Type = domain.RemotePublished
		case msgUnpublished:
			ev.Type = domain.RemoteUnpublished
		default:
			ev.Type = domain.RemoteLeft
			ev.Kind = ""
		}
		s.emit(ev)

	case msgError:
		var p errorPayload
		_ = decode(msg, &p)
		s.logger.Warnw("SFU reported an error", "code", p.Code, "message", p.Message)
	}
}

func (s *session) emit(ev domain.RemoteEvent) {
	select {
	case s.events <- ev:
	case <-s.closed:
	}
}

// answerOffer handles SFU-initiated renegotiation, which is how subscribed tracks arrive.
func (s *session) answerOffer(sdp string) {
	s.negMu.Lock()
	defer s.negMu.Unlock()

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		s.logger.Warnw("Failed to apply remote offer", "error", err)
		return
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		s.logger.Warnw("Failed to create answer", "error", err)
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.logger.Warnw("Failed to apply local answer", "error", err)
		return
	}
	if err := s.sig.send(msgAnswer, sdpPayload{SDP: answer.SDP}); err != nil {
		s.logger.Warnw("Failed to send answer", "error", err)
	}
}

// negotiate runs one client-initiated offer/answer exchange. Callers hold negMu.
func (s *session) negotiate(ctx context.Context) error {
	select {
	case <-s.answers:
	default:
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	if err := s.sig.send(msgOffer, sdpPayload{SDP: offer.SDP}); err != nil {
		return err
	}

	select {
	case answer := <-s.answers:
		if err := s.pc.SetRemoteDescription(answer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return domain.ErrConnectionLost
	}
}

func (s *session) Publish(ctx context.Context, tracks ...ports.LocalTrack) error {
	s.negMu.Lock()
	defer s.negMu.Unlock()

	locals := make([]*localTrack, 0, len(tracks))
	for _, t := range tracks {
		lt, ok := t.(*localTrack)
		if !ok {
			return fmt.Errorf("unsupported local track %T", t)
		}
		sender, err := s.pc.AddTrack(lt.rtc)
		if err != nil {
			return fmt.Errorf("add %s track: %w", lt.kind, err)
		}
		go drainRTCP(sender)

		s.mu.Lock()
		s.senders[lt.ID()] = sender
		s.mu.Unlock()
		locals = append(locals, lt)
	}

	if err := s.negotiate(ctx); err != nil {
		return fmt.Errorf("negotiate publish: %w", err)
	}
	for _, lt := range locals {
		if err := s.sig.send(msgPublish, trackPayload{TrackID: lt.ID(), Kind: lt.kind}); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) Unpublish(ctx context.Context, tracks ...ports.LocalTrack) error {
	s.negMu.Lock()
	defer s.negMu.Unlock()

	var removed []ports.LocalTrack
	for _, t := range tracks {
		s.mu.Lock()
		sender, ok := s.senders[t.ID()]
		delete(s.senders, t.ID())
		s.mu.Unlock()
		if !ok {
			continue
		}
		if err := s.pc.RemoveTrack(sender); err != nil {
			return fmt.Errorf("remove %s track: %w", t.Kind(), err)
		}
		removed = append(removed, t)
	}
	if len(removed) == 0 {
		return nil
	}

	if err := s.negotiate(ctx); err != nil {
		return fmt.Errorf("negotiate unpublish: %w", err)
	}
	for _, t := range removed {
		if err := s.sig.send(msgUnpublish, trackPayload{TrackID: t.ID(), Kind: t.Kind()}); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) onTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	rt := newRemoteTrack(track, receiver)
	key := trackKey{remoteID: rt.remoteID, kind: rt.kind}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.waiters[key]; ok {
		delete(s.waiters, key)
		w <- rt
		return
	}
	if old := s.arrived[key]; old != nil {
		old.Stop()
	}
	s.arrived[key] = rt
}

// Subscribe asks the SFU to forward a remote track and waits for it to arrive on the peer
// connection. Video subscriptions request a keyframe right away.
func (s *session) Subscribe(ctx context.Context, remoteID domain.UserID, kind domain.MediaKind) (ports.RemoteTrack, error) {
	key := trackKey{remoteID: remoteID, kind: kind}

	s.mu.Lock()
	if rt, ok := s.arrived[key]; ok {
		delete(s.arrived, key)
		s.mu.Unlock()
		return s.ready(rt), nil
	}
	w := make(chan *remoteTrack, 1)
	s.waiters[key] = w
	s.mu.Unlock()

	if err := s.sig.send(msgSubscribe, trackPayload{UserID: remoteID, Kind: kind}); err != nil {
		s.dropWaiter(key, w)
		return nil, err
	}

	select {
	case rt := <-w:
		return s.ready(rt), nil
	case <-ctx.Done():
		s.dropWaiter(key, w)
		return nil, ctx.Err()
	case <-s.closed:
		s.dropWaiter(key, w)
		return nil, domain.ErrConnectionLost
	}
}

func (s *session) dropWaiter(key trackKey, w chan *remoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiters[key] == w {
		delete(s.waiters, key)
	}
	select {
	case rt := <-w:
		rt.Stop()
	default:
	}
}

func (s *session) ready(rt *remoteTrack) *remoteTrack {
	if rt.kind == domain.MediaVideo {
		pli := []rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: uint32(rt.SSRC())}}
		if err := s.pc.WriteRTCP(pli); err != nil {
			s.logger.Debugw("Failed to request keyframe", "remote_id", rt.remoteID, "error", err)
		}
	}
	return rt
}

// Leave tells the SFU we are gone and releases the connection. Safe to call more than once.
func (s *session) Leave(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.sig.send(msgLeave, nil)

		s.mu.Lock()
		for key, rt := range s.arrived {
			rt.Stop()
			delete(s.arrived, key)
		}
		s.mu.Unlock()

		if cerr := s.pc.Close(); cerr != nil {
			err = fmt.Errorf("close peer connection: %w", cerr)
		}
		_ = s.sig.close()
	})
	return err
}

// drainRTCP keeps the sender's interceptors fed.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
