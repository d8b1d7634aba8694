package webrtc

import (
	"context"
	"fmt"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"
	"interviewroom/pkg/config"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const localStreamID = "interviewroom"

// Config configures the engine's SFU connection and capture devices.
type Config struct {
	SignalURL  string
	ICEServers []webrtc.ICEServer
	PortMin    uint16
	PortMax    uint16
	// AudioFile and VideoFile back the microphone (Ogg/Opus) and camera (IVF). Empty means the
	// device is unavailable.
	AudioFile string
	VideoFile string
	// ReadTimeout must exceed the SFU's ping interval.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFrom maps the transport section of the application config.
func ConfigFrom(cfg *config.Config) Config {
	servers := make([]webrtc.ICEServer, 0, len(cfg.Transport.ICEServers))
	for _, s := range cfg.Transport.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return Config{
		SignalURL:    cfg.Transport.SignalURL,
		ICEServers:   servers,
		PortMin:      cfg.Transport.PortRange.Min,
		PortMax:      cfg.Transport.PortRange.Max,
		AudioFile:    cfg.Transport.AudioFile,
		VideoFile:    cfg.Transport.VideoFile,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Engine joins SFU channels over websocket signaling and a single pion peer connection.
type Engine struct {
	cfg    Config
	api    *webrtc.API
	logger *zap.SugaredLogger
}

var _ ports.TransportEngine = (*Engine)(nil)

func NewEngine(cfg Config, logger *zap.SugaredLogger) (*Engine, error) {
	if cfg.SignalURL == "" {
		return nil, fmt.Errorf("signal url is required")
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	settings := webrtc.SettingEngine{}
	if cfg.PortMin > 0 && cfg.PortMax > 0 {
		if err := settings.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
			return nil, fmt.Errorf("set port range: %w", err)
		}
	}

	return &Engine{
		cfg: cfg,
		api: webrtc.NewAPI(
			webrtc.WithMediaEngine(mediaEngine),
			webrtc.WithInterceptorRegistry(registry),
			webrtc.WithSettingEngine(settings),
		),
		logger: logger,
	}, nil
}

// JoinChannel connects to the SFU and waits until the credential is accepted. The returned session
// starts with a published event for every track already in the channel.
func (e *Engine) JoinChannel(ctx context.Context, appID, channel, token string, localID domain.UserID) (ports.TransportSession, error) {
	sig, err := dialSignal(ctx, e.cfg.SignalURL, e.cfg.ReadTimeout, e.cfg.WriteTimeout)
	if err != nil {
		return nil, err
	}

	joined, err := sig.handshake(ctx, joinPayload{
		AppID:   appID,
		Channel: channel,
		Token:   token,
		UserID:  localID,
	})
	if err != nil {
		_ = sig.close()
		return nil, err
	}

	pc, err := e.api.NewPeerConnection(webrtc.Configuration{ICEServers: e.cfg.ICEServers})
	if err != nil {
		_ = sig.send(msgLeave, nil)
		_ = sig.close()
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	s := newSession(localID, pc, sig, e.logger.With("channel", channel))
	go s.readLoop(joined.Participants)

	e.logger.Infow("Joined channel",
		"channel", channel,
		"uid", localID,
		"participants", len(joined.Participants),
	)
	return s, nil
}

func (e *Engine) CreateAudioTrack(ctx context.Context) (ports.LocalTrack, error) {
	if e.cfg.AudioFile == "" {
		return nil, fmt.Errorf("%w: no microphone configured", domain.ErrDeviceUnavailable)
	}
	src, err := openOggSource(e.cfg.AudioFile)
	if err != nil {
		return nil, fmt.Errorf("%w: microphone: %v", domain.ErrDeviceUnavailable, err)
	}

	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	track, err := newLocalTrack(domain.MediaAudio, codec, localStreamID, src, oggPageDuration, e.logger)
	if err != nil {
		_ = src.close()
		return nil, err
	}
	return track, nil
}

func (e *Engine) CreateVideoTrack(ctx context.Context) (ports.LocalTrack, error) {
	if e.cfg.VideoFile == "" {
		return nil, fmt.Errorf("%w: no camera configured", domain.ErrDeviceUnavailable)
	}
	src, err := openIVFSource(e.cfg.VideoFile)
	if err != nil {
		return nil, fmt.Errorf("%w: camera: %v", domain.ErrDeviceUnavailable, err)
	}

	codec := webrtc.RTPCodecCapability{MimeType: src.mimeType, ClockRate: 90000}
	track, err := newLocalTrack(domain.MediaVideo, codec, localStreamID, src, src.frameDur, e.logger)
	if err != nil {
		_ = src.close()
		return nil, err
	}
	return track, nil
}
