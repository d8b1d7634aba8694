package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"interviewroom/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"go.uber.org/zap"
)

const oggPageDuration = 20 * time.Millisecond

// sampleSource yields encoded media samples from a capture device.
type sampleSource interface {
	next() (media.Sample, error)
	rewind() error
	close() error
}

// localTrack is a capture device bound to a pion sample track. While disabled, samples are read
// and dropped so the source keeps its pace.
type localTrack struct {
	kind    domain.MediaKind
	rtc     *webrtc.TrackLocalStaticSample
	source  sampleSource
	pace    time.Duration
	enabled atomic.Bool

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.SugaredLogger
}

func newLocalTrack(kind domain.MediaKind, codec webrtc.RTPCodecCapability, streamID string, source sampleSource, pace time.Duration, logger *zap.SugaredLogger) (*localTrack, error) {
	rtc, err := webrtc.NewTrackLocalStaticSample(codec, fmt.Sprintf("%s-%s", kind, uuid.NewString()), streamID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", kind, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &localTrack{
		kind:   kind,
		rtc:    rtc,
		source: source,
		pace:   pace,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logger,
	}
	t.enabled.Store(true)
	go t.pump(ctx)
	return t, nil
}

func (t *localTrack) ID() string              { return t.rtc.ID() }
func (t *localTrack) Kind() domain.MediaKind  { return t.kind }
func (t *localTrack) Enabled() bool           { return t.enabled.Load() }
func (t *localTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

func (t *localTrack) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.done
		err = t.source.close()
	})
	return err
}

func (t *localTrack) pump(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.pace)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sample, err := t.source.next()
		if errors.Is(err, io.EOF) {
			if err = t.source.rewind(); err == nil {
				continue
			}
		}
		if err != nil {
			t.logger.Warnw("Capture device stopped", "kind", t.kind, "track_id", t.ID(), "error", err)
			return
		}

		if !t.enabled.Load() {
			continue
		}
		if err := t.rtc.WriteSample(sample); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			t.logger.Debugw("Failed to write sample", "kind", t.kind, "error", err)
		}
	}
}

// oggSource loops an Ogg/Opus file.
type oggSource struct {
	file        *os.File
	reader      *oggreader.OggReader
	lastGranule uint64
}

func openOggSource(path string) (*oggSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, _, err := oggreader.NewWith(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &oggSource{file: file, reader: reader}, nil
}

func (s *oggSource) next() (media.Sample, error) {
	data, header, err := s.reader.ParseNextPage()
	if err != nil {
		return media.Sample{}, err
	}
	// Opus always runs at 48kHz.
	samples := header.GranulePosition - s.lastGranule
	s.lastGranule = header.GranulePosition
	duration := time.Duration(float64(samples)/48000*1000) * time.Millisecond
	return media.Sample{Data: data, Duration: duration}, nil
}

func (s *oggSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader, _, err := oggreader.NewWith(s.file)
	if err != nil {
		return err
	}
	s.reader = reader
	s.lastGranule = 0
	return nil
}

func (s *oggSource) close() error { return s.file.Close() }

// ivfSource loops an IVF file with VP8 or VP9 frames.
type ivfSource struct {
	file     *os.File
	reader   *ivfreader.IVFReader
	frameDur time.Duration
	mimeType string
}

func openIVFSource(path string) (*ivfSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	var mimeType string
	switch header.FourCC {
	case "VP80":
		mimeType = webrtc.MimeTypeVP8
	case "VP90":
		mimeType = webrtc.MimeTypeVP9
	default:
		_ = file.Close()
		return nil, fmt.Errorf("unsupported ivf codec %q", header.FourCC)
	}

	frameDur := 33 * time.Millisecond
	if header.TimebaseDenominator > 0 {
		frameDur = time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
	}
	return &ivfSource{file: file, reader: reader, frameDur: frameDur, mimeType: mimeType}, nil
}

func (s *ivfSource) next() (media.Sample, error) {
	frame, _, err := s.reader.ParseNextFrame()
	if err != nil {
		return media.Sample{}, err
	}
	return media.Sample{Data: frame, Duration: s.frameDur}, nil
}

func (s *ivfSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	reader, _, err := ivfreader.NewWith(s.file)
	if err != nil {
		return err
	}
	s.reader = reader
	return nil
}

func (s *ivfSource) close() error { return s.file.Close() }
