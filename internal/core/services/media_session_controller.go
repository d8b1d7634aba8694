package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"
	"interviewroom/pkg/retry"
	"interviewroom/pkg/tracing"
	"interviewroom/pkg/validation"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	warnCameraUnavailable     = "Camera unavailable, continuing with audio only."
	warnMicrophoneUnavailable = "Microphone unavailable, others will not hear you."
	blockingNoDevices         = "No camera or microphone could be started. You are connected without audio or video."

	statusBufferSize = 8
)

// ControllerConfig tunes a MediaSessionController.
type ControllerConfig struct {
	AppID                string
	JoinTimeout          time.Duration
	OperationTimeout     time.Duration
	NotifyTimeout        time.Duration
	CredentialTTLMinutes int
	InboxSize            int
	RenderRetry          retry.Config
	NotifyRetry          retry.Config
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		JoinTimeout:          20 * time.Second,
		OperationTimeout:     10 * time.Second,
		NotifyTimeout:        15 * time.Second,
		CredentialTTLMinutes: int(domain.DefaultCredentialTTL / time.Minute),
		InboxSize:            64,
		RenderRetry: retry.Config{
			Enabled:         true,
			MaxAttempts:     10,
			InitialDelay:    50 * time.Millisecond,
			MaxDelay:        time.Second,
			Multiplier:      2.0,
			RetryableErrors: []error{domain.ErrRenderTargetAbsent},
		},
		NotifyRetry: retry.Config{
			Enabled:      true,
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

func (c *ControllerConfig) applyDefaults() {
	def := DefaultControllerConfig()
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = def.JoinTimeout
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = def.NotifyTimeout
	}
	if c.CredentialTTLMinutes <= 0 {
		c.CredentialTTLMinutes = def.CredentialTTLMinutes
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
	if c.RenderRetry.MaxAttempts == 0 {
		c.RenderRetry = def.RenderRetry
	}
	if c.NotifyRetry.MaxAttempts == 0 {
		c.NotifyRetry = def.NotifyRetry
	}
}

// ControllerDeps are the collaborators of a MediaSessionController. Renderer, Publisher and
// Metrics are optional.
type ControllerDeps struct {
	Meeting     *domain.Meeting
	Directory   *ParticipantDirectory
	Identity    domain.Identity
	Engine      ports.TransportEngine
	Credentials ports.CredentialStore
	Meetings    ports.MeetingRepository
	Renderer    ports.Renderer
	Publisher   ports.StatusPublisher
	Metrics     ports.CallMetrics
	Clock       ports.Clock
	Logger      *zap.SugaredLogger
}

type commandKind int

const (
	cmdRequestJoin commandKind = iota
	cmdSubmitCredential
	cmdToggleCamera
	cmdToggleMic
	cmdLeave
	cmdRetry
)

type command struct {
	kind  commandKind
	token string
	reply chan error
}

type joinResult struct {
	gen     uint64
	session ports.TransportSession
	err     error
}

type joinTimedOut struct{ gen uint64 }

type captureResult struct {
	gen     uint64
	kind    domain.MediaKind
	track   ports.LocalTrack
	err     error
	initial bool
}

type publishResult struct {
	gen   uint64
	track ports.LocalTrack
	err   error
}

type remoteEventMsg struct {
	gen   uint64
	event domain.RemoteEvent
}

type subscribeResult struct {
	gen      uint64
	remoteID domain.UserID
	kind     domain.MediaKind
	seq      uint64
	track    ports.RemoteTrack
	err      error
}

type sessionEnded struct{ gen uint64 }

type localSlot struct {
	kind      domain.MediaKind
	track     ports.LocalTrack
	pending   bool
	want      bool
	published bool
}

func (s *localSlot) reset() {
	s.track = nil
	s.pending = false
	s.want = true
	s.published = false
}

func (s *localSlot) status() domain.TrackStatus {
	st := domain.TrackStatus{Pending: s.pending, Enabled: s.want}
	if s.track != nil {
		st.Present = true
		st.Enabled = s.track.Enabled()
	}
	return st
}

// MediaSessionController drives one user's participation in one call. Every state change
// happens on a single loop goroutine; asynchronous work (joining, capture, publish,
// subscribe) reports back through the inbox tagged with the attempt generation, so results
// of an abandoned attempt are released instead of applied.
type MediaSessionController struct {
	cfg         ControllerConfig
	meeting     *domain.Meeting
	directory   *ParticipantDirectory
	identity    domain.Identity
	engine      ports.TransportEngine
	credentials ports.CredentialStore
	meetings    ports.MeetingRepository
	renderer    ports.Renderer
	publisher   ports.StatusPublisher
	metrics     ports.CallMetrics
	clock       ports.Clock
	logger      *zap.SugaredLogger

	inbox   chan interface{}
	quit    chan struct{}
	done    chan struct{}
	postMu  sync.RWMutex
	closed  bool
	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	// owned by the loop goroutine
	state           domain.CallState
	gen             uint64
	session         ports.TransportSession
	sessionCtx      context.Context
	sessionStop     context.CancelFunc
	joinTimer       *time.Timer
	joinSpan        trace.Span
	joinStarted     time.Time
	joinedAt        time.Time
	initialCaptures int
	audio           *localSlot
	video           *localSlot
	remotes         *remoteRegistry
	warnings        []string
	blocking        string
	lastErr         error
	retryTarget     domain.RetryTarget
	// set when the call leaves idle; teardown clears the credential then
	engaged         bool

	statusMu   sync.RWMutex
	status     domain.CallStatus
	subs       map[int]chan domain.CallStatus
	nextSub    int
	subsClosed bool
}

func NewMediaSessionController(cfg ControllerConfig, deps ControllerDeps) *MediaSessionController {
	cfg.applyDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopCallMetrics{}
	}
	directory := deps.Directory
	if directory == nil {
		directory = NewParticipantDirectory(deps.Meeting, DefaultDirectoryOptions())
	}

	c := &MediaSessionController{
		cfg:         cfg,
		meeting:     deps.Meeting,
		directory:   directory,
		identity:    deps.Identity,
		engine:      deps.Engine,
		credentials: deps.Credentials,
		meetings:    deps.Meetings,
		renderer:    deps.Renderer,
		publisher:   deps.Publisher,
		metrics:     metrics,
		clock:       clock,
		logger: logger.With(
			"meeting_id", deps.Meeting.ID,
			"user_id", deps.Identity.ID,
		),
		inbox:   make(chan interface{}, cfg.InboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   domain.CallIdle,
		audio:   &localSlot{kind: domain.MediaAudio, want: true},
		video:   &localSlot{kind: domain.MediaVideo, want: true},
		remotes: newRemoteRegistry(),
		subs:    make(map[int]chan domain.CallStatus),
	}
	c.status = c.buildStatus()
	return c
}

// Start runs the controller loop in its own goroutine until ctx is cancelled or Close is called.
func (c *MediaSessionController) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
}

// Run is the blocking form of Start. It returns after teardown completed.
func (c *MediaSessionController) Run(ctx context.Context) {
	c.Start(ctx)
	<-c.done
}

// Close stops the loop and waits until every acquired resource is released.
func (c *MediaSessionController) Close(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}
	c.cancel()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed after the controller has torn down.
func (c *MediaSessionController) Done() <-chan struct{} {
	return c.done
}

func (c *MediaSessionController) Meeting() *domain.Meeting {
	return c.meeting
}

func (c *MediaSessionController) Identity() domain.Identity {
	return c.identity
}

// RequestJoin starts joining. Without a valid stored credential the controller waits in
// awaiting_credential.
func (c *MediaSessionController) RequestJoin(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdRequestJoin})
}

func (c *MediaSessionController) SubmitCredential(ctx context.Context, token string) error {
	return c.dispatch(ctx, command{kind: cmdSubmitCredential, token: token})
}

func (c *MediaSessionController) ToggleCamera(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdToggleCamera})
}

func (c *MediaSessionController) ToggleMic(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdToggleMic})
}

// Leave ends the call from any state. It never fails because of the backend notification.
func (c *MediaSessionController) Leave(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdLeave})
}

func (c *MediaSessionController) Retry(ctx context.Context) error {
	return c.dispatch(ctx, command{kind: cmdRetry})
}

// Status returns the latest published snapshot.
func (c *MediaSessionController) Status() domain.CallStatus {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Subscribe returns a channel that receives the current status followed by every change.
// Slow readers lose intermediate snapshots, never the latest one.
func (c *MediaSessionController) Subscribe() (<-chan domain.CallStatus, func()) {
	ch := make(chan domain.CallStatus, statusBufferSize)

	c.statusMu.Lock()
	defer c.statusMu.Unlock()

	ch <- c.status
	if c.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.statusMu.Lock()
			defer c.statusMu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

func (c *MediaSessionController) dispatch(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	if !c.post(cmd) {
		return domain.ErrControllerClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *MediaSessionController) post(msg interface{}) bool {
	c.postMu.RLock()
	defer c.postMu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.inbox <- msg:
		return true
	case <-c.quit:
		return false
	}
}

// deliver posts a result and releases what it holds when the loop is gone.
func (c *MediaSessionController) deliver(msg interface{}) {
	if !c.post(msg) {
		c.release(msg)
	}
}

func (c *MediaSessionController) release(msg interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
	defer cancel()

	switch m := msg.(type) {
	case command:
		m.reply <- domain.ErrControllerClosed
	case joinResult:
		if m.session != nil {
			if err := m.session.Leave(ctx); err != nil {
				c.logger.Warnw("Failed to leave abandoned session", "error", err)
			}
		}
	case captureResult:
		if m.track != nil {
			_ = m.track.Close()
		}
	case subscribeResult:
		if m.track != nil {
			m.track.Stop()
		}
	}
}

func (c *MediaSessionController) run() {
	defer c.shutdown()

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.inbox:
			if cmd, ok := msg.(command); ok {
				err := c.handleCommand(cmd)
				c.refreshStatus()
				cmd.reply <- err
				continue
			}
			c.handle(msg)
			c.refreshStatus()
		}
	}
}

func (c *MediaSessionController) shutdown() {
	close(c.quit)
	c.postMu.Lock()
	c.closed = true
	c.postMu.Unlock()

	c.leave("teardown", c.engaged)
	c.refreshStatus()

	for {
		select {
		case msg := <-c.inbox:
			c.release(msg)
			continue
		default:
		}
		break
	}

	c.statusMu.Lock()
	c.subsClosed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.statusMu.Unlock()

	c.logger.Infow("Call controller stopped")
	close(c.done)
}

func (c *MediaSessionController) handle(msg interface{}) {
	switch m := msg.(type) {
	case joinResult:
		c.onJoinResult(m)
	case joinTimedOut:
		c.onJoinTimedOut(m)
	case captureResult:
		c.onCaptureResult(m)
	case publishResult:
		c.onPublishResult(m)
	case remoteEventMsg:
		c.onRemoteEvent(m)
	case subscribeResult:
		c.onSubscribeResult(m)
	case sessionEnded:
		c.onSessionEnded(m)
	}
}

func (c *MediaSessionController) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdRequestJoin:
		return c.requestJoin()
	case cmdSubmitCredential:
		return c.submitCredential(cmd.token)
	case cmdToggleCamera:
		return c.toggle(c.video)
	case cmdToggleMic:
		return c.toggle(c.audio)
	case cmdLeave:
		c.leave("user_left", true)
		return nil
	case cmdRetry:
		return c.retry()
	}
	return fmt.Errorf("unknown command %d", cmd.kind)
}

func (c *MediaSessionController) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
}

func (c *MediaSessionController) requestJoin() error {
	switch c.state {
	case domain.CallIdle, domain.CallError:
	case domain.CallAwaitingCredential:
		return nil
	default:
		return fmt.Errorf("%w: cannot join while %s", domain.ErrInvalidTransition, c.state)
	}
	c.engaged = true

	ctx, cancel := c.opContext()
	defer cancel()

	token, ok := c.credentials.Get(ctx)
	if !ok {
		c.clearFailure()
		c.state = domain.CallAwaitingCredential
		return nil
	}
	c.startJoin(token)
	return nil
}

func (c *MediaSessionController) submitCredential(token string) error {
	if c.state != domain.CallAwaitingCredential &&
		!(c.state == domain.CallError && c.retryTarget == domain.RetryCredential) {
		return fmt.Errorf("%w: no credential expected while %s", domain.ErrInvalidTransition, c.state)
	}
	if err := validation.ValidateCredentialToken(token); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}

	ctx, cancel := c.opContext()
	defer cancel()
	c.credentials.Save(ctx, token, c.cfg.CredentialTTLMinutes)

	c.startJoin(token)
	return nil
}

func (c *MediaSessionController) retry() error {
	if c.state != domain.CallError {
		return fmt.Errorf("%w: nothing to retry while %s", domain.ErrInvalidTransition, c.state)
	}
	if c.retryTarget == domain.RetryCredential {
		c.clearFailure()
		c.state = domain.CallAwaitingCredential
		return nil
	}
	return c.requestJoin()
}

func (c *MediaSessionController) startJoin(token string) {
	c.gen++
	gen := c.gen
	c.clearFailure()
	c.audio.reset()
	c.video.reset()
	c.state = domain.CallJoining
	c.joinStarted = c.clock.Now()

	channel := c.meeting.Channel()
	spanCtx, span := tracing.TraceCall(context.Background(), "join", string(c.meeting.ID), channel)
	c.joinSpan = span

	c.joinTimer = time.AfterFunc(c.cfg.JoinTimeout, func() {
		c.post(joinTimedOut{gen: gen})
	})

	c.logger.Infow("Joining call", "channel", channel, "attempt", gen)

	go func() {
		ctx, cancel := context.WithTimeout(spanCtx, c.cfg.JoinTimeout)
		defer cancel()

		session, err := c.engine.JoinChannel(ctx, c.cfg.AppID, channel, token, c.identity.ID)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", domain.ErrJoinTimeout, err)
		}
		c.deliver(joinResult{gen: gen, session: session, err: err})
	}()
}

func (c *MediaSessionController) onJoinTimedOut(m joinTimedOut) {
	if m.gen != c.gen || c.state != domain.CallJoining || c.session != nil {
		return
	}
	c.fail(domain.ErrJoinTimeout)
}

func (c *MediaSessionController) onJoinResult(m joinResult) {
	if m.gen != c.gen || c.state != domain.CallJoining || c.session != nil {
		if m.session != nil {
			c.logger.Debugw("Discarding session of abandoned join", "attempt", m.gen)
			go c.release(m)
		}
		return
	}
	c.stopJoinTimer()

	if m.err != nil {
		c.fail(m.err)
		return
	}

	c.session = m.session
	c.sessionCtx, c.sessionStop = context.WithCancel(context.Background())
	c.joinedAt = c.clock.Now()
	c.metrics.JoinSucceeded(c.joinedAt.Sub(c.joinStarted))
	c.metrics.CallStarted()
	c.endJoinSpan(nil)

	c.logger.Infow("Joined channel", "channel", c.meeting.Channel())

	go c.pumpEvents(c.gen, c.session, c.sessionCtx)

	c.initialCaptures = 2
	c.audio.pending = true
	c.video.pending = true
	gen := c.gen
	go func() {
		for _, kind := range []domain.MediaKind{domain.MediaAudio, domain.MediaVideo} {
			track, err := c.createTrack(kind)
			c.deliver(captureResult{gen: gen, kind: kind, track: track, err: err, initial: true})
		}
	}()
}

func (c *MediaSessionController) createTrack(kind domain.MediaKind) (ports.LocalTrack, error) {
	ctx, cancel := c.opContext()
	defer cancel()
	if kind == domain.MediaVideo {
		return c.engine.CreateVideoTrack(ctx)
	}
	return c.engine.CreateAudioTrack(ctx)
}

func (c *MediaSessionController) slot(kind domain.MediaKind) *localSlot {
	if kind == domain.MediaVideo {
		return c.video
	}
	return c.audio
}

func (c *MediaSessionController) onCaptureResult(m captureResult) {
	if m.gen != c.gen || c.session == nil {
		c.release(m)
		return
	}

	slot := c.slot(m.kind)
	slot.pending = false

	if m.err != nil {
		c.metrics.CaptureFailed(m.kind)
		c.logger.Warnw("Failed to start capture device", "kind", m.kind, "error", m.err)
		if m.kind == domain.MediaVideo {
			c.addWarning(warnCameraUnavailable)
		} else {
			c.addWarning(warnMicrophoneUnavailable)
		}
	} else {
		slot.track = m.track
		m.track.SetEnabled(slot.want)
		c.removeWarning(m.kind)
		c.publish(slot)
	}

	if !m.initial {
		return
	}
	c.initialCaptures--
	if c.initialCaptures > 0 {
		return
	}
	if c.audio.track == nil && c.video.track == nil {
		c.blocking = blockingNoDevices
	}
	if c.state == domain.CallJoining {
		c.state = domain.CallJoined
	}
}

func (c *MediaSessionController) publish(slot *localSlot) {
	gen, session, track := c.gen, c.session, slot.track
	parent := c.sessionCtx
	go func() {
		ctx, cancel := context.WithTimeout(parent, c.cfg.OperationTimeout)
		defer cancel()
		err := session.Publish(ctx, track)
		c.deliver(publishResult{gen: gen, track: track, err: err})
	}()
}

func (c *MediaSessionController) onPublishResult(m publishResult) {
	if m.gen != c.gen || c.session == nil {
		return
	}
	slot := c.slot(m.track.Kind())
	if slot.track != m.track {
		return
	}
	if m.err != nil {
		c.fail(fmt.Errorf("publish %s: %w", m.track.Kind(), m.err))
		return
	}
	slot.published = true
}

func (c *MediaSessionController) toggle(slot *localSlot) error {
	if c.state != domain.CallJoining && c.state != domain.CallJoined {
		return fmt.Errorf("%w: cannot toggle %s while %s", domain.ErrInvalidTransition, slot.kind, c.state)
	}

	switch {
	case slot.track != nil:
		enabled := !slot.track.Enabled()
		slot.track.SetEnabled(enabled)
		slot.want = enabled
	case slot.pending || c.session == nil:
		slot.want = !slot.want
	default:
		slot.want = true
		slot.pending = true
		gen, kind := c.gen, slot.kind
		go func() {
			track, err := c.createTrack(kind)
			c.deliver(captureResult{gen: gen, kind: kind, track: track, err: err})
		}()
	}

	c.logger.Debugw("Toggled local media", "kind", slot.kind, "enabled", slot.want)
	return nil
}

func (c *MediaSessionController) pumpEvents(gen uint64, session ports.TransportSession, ctx context.Context) {
	events := session.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.post(sessionEnded{gen: gen})
				return
			}
			if !c.post(remoteEventMsg{gen: gen, event: ev}) {
				return
			}
		}
	}
}

func (c *MediaSessionController) onRemoteEvent(m remoteEventMsg) {
	if m.gen != c.gen || c.session == nil {
		return
	}
	ev := m.event
	if ev.RemoteID == c.identity.ID {
		return
	}

	switch ev.Type {
	case domain.RemotePublished:
		seq := c.remotes.markPublished(ev.RemoteID, ev.Kind)
		c.subscribe(ev.RemoteID, ev.Kind, seq)
	case domain.RemoteUnpublished:
		if slot := c.remotes.unpublish(ev.RemoteID, ev.Kind); slot != nil {
			c.releaseRemote(ev.RemoteID, ev.Kind, slot)
		}
	case domain.RemoteLeft:
		for _, slot := range c.remotes.remove(ev.RemoteID) {
			c.releaseRemote(ev.RemoteID, slot.track.Kind(), slot)
		}
		c.logger.Infow("Remote participant left", "remote_id", ev.RemoteID)
	}
	c.metrics.RemoteParticipants(c.remotes.len())
}

func (c *MediaSessionController) subscribe(remoteID domain.UserID, kind domain.MediaKind, seq uint64) {
	gen, session, parent := c.gen, c.session, c.sessionCtx
	go func() {
		ctx, cancel := context.WithTimeout(parent, c.cfg.OperationTimeout)
		defer cancel()
		track, err := session.Subscribe(ctx, remoteID, kind)
		c.deliver(subscribeResult{gen: gen, remoteID: remoteID, kind: kind, seq: seq, track: track, err: err})
	}()
}

func (c *MediaSessionController) onSubscribeResult(m subscribeResult) {
	if m.gen != c.gen || c.session == nil {
		c.release(m)
		return
	}
	if m.err != nil {
		c.remotes.clearPending(m.remoteID, m.kind, m.seq)
		c.logger.Warnw("Failed to subscribe to remote track",
			"remote_id", m.remoteID,
			"kind", m.kind,
			"error", m.err,
		)
		return
	}

	ctx, cancel := context.WithCancel(c.sessionCtx)
	slot := &remoteSlot{track: m.track, cancel: cancel}
	replaced, ok := c.remotes.attach(m.remoteID, m.kind, m.seq, slot)
	if !ok {
		cancel()
		m.track.Stop()
		return
	}
	if replaced != nil {
		c.releaseRemote(m.remoteID, m.kind, replaced)
	}
	c.render(ctx, m.track)
}

func (c *MediaSessionController) render(ctx context.Context, track ports.RemoteTrack) {
	if c.renderer == nil {
		return
	}
	go func() {
		err := retry.Retry(ctx, c.cfg.RenderRetry, func() error {
			return c.renderer.Attach(ctx, track)
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Warnw("Failed to attach remote track",
				"remote_id", track.RemoteID(),
				"kind", track.Kind(),
				"error", err,
			)
		}
	}()
}

func (c *MediaSessionController) releaseRemote(remoteID domain.UserID, kind domain.MediaKind, slot *remoteSlot) {
	slot.cancel()
	slot.track.Stop()
	if c.renderer != nil {
		c.renderer.Detach(remoteID, kind)
	}
}

func (c *MediaSessionController) onSessionEnded(m sessionEnded) {
	if m.gen != c.gen || c.session == nil {
		return
	}
	c.fail(domain.ErrConnectionLost)
}

// fail tears the call down into the error state.
func (c *MediaSessionController) fail(err error) {
	c.logger.Warnw("Call failed", "state", c.state, "error", err)
	if c.state == domain.CallJoining {
		c.metrics.JoinFailed(failureReason(err))
	}
	c.endJoinSpan(err)
	c.teardown("error")

	c.lastErr = err
	c.retryTarget = domain.RetryJoin
	if domain.IsAuthError(err) {
		ctx, cancel := c.opContext()
		c.credentials.Clear(ctx)
		cancel()
		c.retryTarget = domain.RetryCredential
	}
	c.state = domain.CallError
}

// leave is valid from every state and always ends idle.
func (c *MediaSessionController) leave(reason string, clearCredential bool) {
	if c.state != domain.CallIdle {
		c.state = domain.CallLeaving
		c.refreshStatus()
	}
	c.endJoinSpan(context.Canceled)
	c.teardown(reason)

	if clearCredential {
		ctx, cancel := c.opContext()
		c.credentials.Clear(ctx)
		cancel()
	}

	c.clearFailure()
	c.audio.reset()
	c.video.reset()
	c.state = domain.CallIdle
	if clearCredential {
		c.engaged = false
	}
}

// teardown releases the session and every track. Results of the current attempt that are
// still in flight become stale.
func (c *MediaSessionController) teardown(reason string) {
	c.gen++
	c.stopJoinTimer()
	if c.sessionStop != nil {
		c.sessionStop()
		c.sessionStop = nil
	}

	ctx, cancel := c.opContext()
	defer cancel()

	var published []ports.LocalTrack
	for _, slot := range []*localSlot{c.audio, c.video} {
		if slot.track != nil && slot.published {
			published = append(published, slot.track)
		}
	}
	if c.session != nil && len(published) > 0 {
		if err := c.session.Unpublish(ctx, published...); err != nil {
			c.logger.Warnw("Failed to unpublish local tracks", "error", err)
		}
	}
	for _, slot := range []*localSlot{c.audio, c.video} {
		if slot.track != nil {
			if err := slot.track.Close(); err != nil {
				c.logger.Warnw("Failed to close local track", "kind", slot.kind, "error", err)
			}
		}
		slot.reset()
	}

	for _, slot := range c.remotes.clear() {
		c.releaseRemote(slot.track.RemoteID(), slot.track.Kind(), slot)
	}
	c.metrics.RemoteParticipants(0)

	if c.session == nil {
		return
	}
	if err := c.session.Leave(ctx); err != nil {
		c.logger.Warnw("Failed to leave channel", "error", err)
	}
	c.session = nil
	c.metrics.CallEnded(c.clock.Now().Sub(c.joinedAt))
	c.logger.Infow("Left channel", "reason", reason)

	if c.meetings != nil {
		go c.notifyLeave(reason)
	}
}

func (c *MediaSessionController) notifyLeave(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.NotifyTimeout)
	defer cancel()

	err := retry.Retry(ctx, c.cfg.NotifyRetry, func() error {
		return c.meetings.NotifyLeave(ctx, c.meeting.ID, c.identity.ID, reason)
	})
	if err != nil {
		c.metrics.LeaveNotifyFailed()
		c.logger.Warnw("Failed to notify backend of departure", "reason", reason, "error", err)
	}
}

func (c *MediaSessionController) stopJoinTimer() {
	if c.joinTimer != nil {
		c.joinTimer.Stop()
		c.joinTimer = nil
	}
}

func (c *MediaSessionController) endJoinSpan(err error) {
	if c.joinSpan == nil {
		return
	}
	tracing.MarkCallState(c.joinSpan, string(c.state))
	tracing.EndSpan(c.joinSpan, err)
	c.joinSpan = nil
}

func (c *MediaSessionController) clearFailure() {
	c.lastErr = nil
	c.retryTarget = domain.RetryNone
	c.warnings = nil
	c.blocking = ""
}

func (c *MediaSessionController) addWarning(msg string) {
	for _, w := range c.warnings {
		if w == msg {
			return
		}
	}
	c.warnings = append(c.warnings, msg)
}

func (c *MediaSessionController) removeWarning(kind domain.MediaKind) {
	msg := warnMicrophoneUnavailable
	if kind == domain.MediaVideo {
		msg = warnCameraUnavailable
	}
	out := c.warnings[:0]
	for _, w := range c.warnings {
		if w != msg {
			out = append(out, w)
		}
	}
	c.warnings = out
	if c.audio.track != nil || c.video.track != nil {
		c.blocking = ""
	}
}

func (c *MediaSessionController) buildStatus() domain.CallStatus {
	st := domain.CallStatus{
		State:     c.state,
		MeetingID: c.meeting.ID,
		Channel:   c.meeting.Channel(),
		Audio:     c.audio.status(),
		Video:     c.video.status(),
		Remotes:   c.remotes.snapshot(c.directory),
		Warnings:  append([]string{}, c.warnings...),
		Blocking:  c.blocking,
		Retry:     c.retryTarget,
	}
	if c.lastErr != nil {
		st.Error = describeFailure(c.lastErr)
	}
	return st
}

func (c *MediaSessionController) refreshStatus() {
	next := c.buildStatus()

	c.statusMu.Lock()
	prev := c.status
	next.Version = prev.Version
	if reflect.DeepEqual(prev, next) {
		c.statusMu.Unlock()
		return
	}
	next.Version = prev.Version + 1
	c.status = next
	for _, ch := range c.subs {
		sendLatest(ch, next)
	}
	c.statusMu.Unlock()

	if c.publisher != nil && prev.State != next.State {
		go func() {
			ctx, cancel := c.opContext()
			defer cancel()
			if err := c.publisher.PublishStatus(ctx, next); err != nil {
				c.logger.Warnw("Failed to publish call status", "state", next.State, "error", err)
			}
		}()
	}
}

func sendLatest(ch chan domain.CallStatus, st domain.CallStatus) {
	for {
		select {
		case ch <- st:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func describeFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrJoinTimeout):
		return "Joining the call took too long. Check your connection and try again."
	case errors.Is(err, domain.ErrCredentialExpired):
		return "Your session credential has expired. Please enter a new one."
	case errors.Is(err, domain.ErrInvalidCredential):
		return "The session credential was rejected. Please enter a valid one."
	case errors.Is(err, domain.ErrConnectionLost):
		return "The connection to the call was lost."
	default:
		return fmt.Sprintf("Could not connect to the call: %v", err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrJoinTimeout):
		return "timeout"
	case domain.IsAuthError(err):
		return "credential"
	case errors.Is(err, domain.ErrConnectionLost):
		return "connection"
	default:
		return "transport"
	}
}

type noopCallMetrics struct{}

func (noopCallMetrics) CallStarted() {}
func (noopCallMetrics) CallEnded(time.Duration) {}
func (noopCallMetrics) JoinSucceeded(time.Duration) {}
func (noopCallMetrics) JoinFailed(string) {}
func (noopCallMetrics) CaptureFailed(domain.MediaKind) {}
func (noopCallMetrics) RemoteParticipants(int) {}
func (noopCallMetrics) LeaveNotifyFailed() {}
