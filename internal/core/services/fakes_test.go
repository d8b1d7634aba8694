package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/mock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeKV struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
	setErr map[string]error
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		data:   make(map[string]string),
		ttls:   make(map[string]time.Duration),
		setErr: make(map[string]error),
	}
}

func (kv *fakeKV) Get(_ context.Context, key string) (string, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.getErr != nil {
		return "", kv.getErr
	}
	v, ok := kv.data[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

func (kv *fakeKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for suffix, err := range kv.setErr {
		if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
			return err
		}
	}
	kv.data[key] = value
	kv.ttls[key] = ttl
	return nil
}

func (kv *fakeKV) Delete(_ context.Context, keys ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	for _, k := range keys {
		delete(kv.data, k)
		delete(kv.ttls, k)
	}
	return nil
}

func (kv *fakeKV) Len() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return len(kv.data)
}

// mockMeetingRepository is a testify mock of ports.MeetingRepository.
type mockMeetingRepository struct {
	mock.Mock
}

func (m *mockMeetingRepository) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Meeting), args.Error(1)
}

func (m *mockMeetingRepository) ListMeetings(ctx context.Context) ([]*domain.Meeting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Meeting), args.Error(1)
}

func (m *mockMeetingRepository) NotifyLeave(ctx context.Context, meetingID domain.MeetingID, userID domain.UserID, reason string) error {
	args := m.Called(ctx, meetingID, userID, reason)
	return args.Error(0)
}

type fakeLocalTrack struct {
	id      string
	kind    domain.MediaKind
	mu      sync.Mutex
	enabled bool
	closed  bool
}

func (t *fakeLocalTrack) ID() string             { return t.id }
func (t *fakeLocalTrack) Kind() domain.MediaKind { return t.kind }

func (t *fakeLocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeLocalTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeLocalTrack) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeLocalTrack) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeRemoteTrack struct {
	id       string
	kind     domain.MediaKind
	remoteID domain.UserID
	stopped  atomic.Bool
}

func (t *fakeRemoteTrack) ID() string                    { return t.id }
func (t *fakeRemoteTrack) Kind() domain.MediaKind        { return t.kind }
func (t *fakeRemoteTrack) RemoteID() domain.UserID       { return t.remoteID }
func (t *fakeRemoteTrack) ReadRTP() (*rtp.Packet, error) { return nil, errors.New("not implemented") }
func (t *fakeRemoteTrack) Stop()                         { t.stopped.Store(true) }

type fakeSession struct {
	events    chan domain.RemoteEvent
	closeOnce sync.Once

	mu            sync.Mutex
	published     []ports.LocalTrack
	unpublished   []ports.LocalTrack
	subscribed    []*fakeRemoteTrack
	left          bool
	publishErr    error
	subscribeGate chan struct{}
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan domain.RemoteEvent, 32)}
}

func (s *fakeSession) Publish(_ context.Context, tracks ...ports.LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return s.publishErr
	}
	s.published = append(s.published, tracks...)
	return nil
}

func (s *fakeSession) Unpublish(_ context.Context, tracks ...ports.LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unpublished = append(s.unpublished, tracks...)
	return nil
}

func (s *fakeSession) Subscribe(ctx context.Context, remoteID domain.UserID, kind domain.MediaKind) (ports.RemoteTrack, error) {
	s.mu.Lock()
	gate := s.subscribeGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	track := &fakeRemoteTrack{id: fmt.Sprintf("%s-%s", remoteID, kind), kind: kind, remoteID: remoteID}
	s.mu.Lock()
	s.subscribed = append(s.subscribed, track)
	s.mu.Unlock()
	return track, nil
}

func (s *fakeSession) Events() <-chan domain.RemoteEvent {
	return s.events
}

func (s *fakeSession) Leave(context.Context) error {
	s.mu.Lock()
	s.left = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.events) })
	return nil
}

func (s *fakeSession) Left() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.left
}

func (s *fakeSession) Subscribed() []*fakeRemoteTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakeRemoteTrack(nil), s.subscribed...)
}

func (s *fakeSession) Emit(ev domain.RemoteEvent) {
	s.events <- ev
}

func (s *fakeSession) Published() []ports.LocalTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.LocalTrack(nil), s.published...)
}

func (s *fakeSession) GateSubscriptions() chan struct{} {
	gate := make(chan struct{})
	s.mu.Lock()
	s.subscribeGate = gate
	s.mu.Unlock()
	return gate
}

type fakeEngine struct {
	mu sync.Mutex

	joinErr    error
	joinGate   chan struct{} // JoinChannel blocks on it when set
	audioErr   error
	videoErr   error
	videoGate  chan struct{}
	publishErr error

	session  *fakeSession
	sessions []*fakeSession
	tokens   []string
	tracks   []*fakeLocalTrack
	created  map[domain.MediaKind]int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{created: make(map[domain.MediaKind]int)}
}

func (e *fakeEngine) JoinChannel(ctx context.Context, _, _, token string, _ domain.UserID) (ports.TransportSession, error) {
	e.mu.Lock()
	gate, err := e.joinGate, e.joinErr
	e.tokens = append(e.tokens, token)
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	s := newFakeSession()
	e.mu.Lock()
	s.publishErr = e.publishErr
	e.session = s
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

func (e *fakeEngine) CreateAudioTrack(ctx context.Context) (ports.LocalTrack, error) {
	return e.create(ctx, domain.MediaAudio, nil)
}

func (e *fakeEngine) CreateVideoTrack(ctx context.Context) (ports.LocalTrack, error) {
	e.mu.Lock()
	gate := e.videoGate
	e.mu.Unlock()
	return e.create(ctx, domain.MediaVideo, gate)
}

func (e *fakeEngine) create(ctx context.Context, kind domain.MediaKind, gate chan struct{}) (ports.LocalTrack, error) {
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.audioErr
	if kind == domain.MediaVideo {
		err = e.videoErr
	}
	if err != nil {
		return nil, err
	}
	e.created[kind]++
	track := &fakeLocalTrack{id: fmt.Sprintf("%s-%d", kind, e.created[kind]), kind: kind, enabled: true}
	e.tracks = append(e.tracks, track)
	return track, nil
}

func (e *fakeEngine) set(fn func(e *fakeEngine)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

func (e *fakeEngine) Session() *fakeSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *fakeEngine) Created(kind domain.MediaKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.created[kind]
}

func (e *fakeEngine) OpenTracks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	open := 0
	for _, t := range e.tracks {
		if !t.Closed() {
			open++
		}
	}
	return open
}

func (e *fakeEngine) Tokens() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tokens...)
}

type fakeRenderer struct {
	mu       sync.Mutex
	absent   int // Attach fails with ErrRenderTargetAbsent this many times
	attached map[string]ports.RemoteTrack
	detached []string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{attached: make(map[string]ports.RemoteTrack)}
}

func (r *fakeRenderer) Attach(_ context.Context, track ports.RemoteTrack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.absent > 0 {
		r.absent--
		return domain.ErrRenderTargetAbsent
	}
	r.attached[fmt.Sprintf("%s/%s", track.RemoteID(), track.Kind())] = track
	return nil
}

func (r *fakeRenderer) Detach(remoteID domain.UserID, kind domain.MediaKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%s/%s", remoteID, kind)
	delete(r.attached, key)
	r.detached = append(r.detached, key)
}

func (r *fakeRenderer) Attached(remoteID domain.UserID, kind domain.MediaKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.attached[fmt.Sprintf("%s/%s", remoteID, kind)]
	return ok
}
