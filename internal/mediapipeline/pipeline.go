// Package mediapipeline decodes an RTSP stream into sampled raw frames
// (image.Image values); PNG encoding is left to the caller.
//
// It is framed the way a GStreamer pipeline is framed — a pipeline object
// with Null and Playing states, and a bus of Eos/Error messages the caller
// watches for — but the decode itself runs as an ffmpeg subprocess rather
// than linked GStreamer elements, since no Go GStreamer binding exists in
// this module's dependency surface.
package mediapipeline

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// State mirrors a GStreamer element's state: a pipeline is Null until
// started, Playing while frames are flowing, and returns to Null on Eos,
// Error, or Stop.
type State int

const (
	StateNull State = iota
	StatePlaying
)

// MessageKind identifies a bus message, named after the GStreamer message
// types this pipeline's lifecycle reports on.
type MessageKind int

const (
	// MessageEos reports the source ending cleanly (ffmpeg exited 0).
	MessageEos MessageKind = iota
	// MessageError reports the source failing (ffmpeg exited non-zero). A
	// frame read error on the pipe is only logged and ends Frames; it does not
	// produce a bus message.
	MessageError
)

// Message is one event on the pipeline's bus.
type Message struct {
	Kind MessageKind
	Err  error
}

// Pipeline decodes rtspURL into a stream of sampled raw frames, emitted on
// Frames, with lifecycle events on Bus.
type Pipeline struct {
	rtspURL       string
	width, height int
	sampleEvery   int
	logger        *zap.Logger

	mu    sync.Mutex
	state State

	frames chan image.Image
	bus    chan Message
	cancel context.CancelFunc
}

// Config describes one RTSP source to decode.
type Config struct {
	RTSPURL string
	// Width and Height are the decoded frame dimensions; ffmpeg is asked to
	// scale the source to this size so raw-frame byte offsets are known in
	// advance.
	Width, Height int
	// SampleEvery selects every Nth decoded frame to forward; the rest are
	// dropped before ever reaching Go, since ffmpeg -vf select applies the
	// sampling in the subprocess.
	SampleEvery int
}

// New builds a Pipeline in the Null state. Call Start to begin decoding.
// SampleEvery must be positive: a zero or negative frame interval is rejected
// at startup rather than silently substituted.
func New(cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg.SampleEvery <= 0 {
		return nil, fmt.Errorf("mediapipeline: sample_every must be positive, got %d", cfg.SampleEvery)
	}
	return &Pipeline{
		rtspURL:     cfg.RTSPURL,
		width:       cfg.Width,
		height:      cfg.Height,
		sampleEvery: cfg.SampleEvery,
		logger:      logger,
		frames:      make(chan image.Image, 30),
		bus:         make(chan Message, 4),
	}, nil
}

// Frames returns the channel of decoded, sampled frames. It is closed when
// the pipeline returns to Null.
func (p *Pipeline) Frames() <-chan image.Image { return p.frames }

// Bus returns the channel of lifecycle messages, mirroring a GStreamer
// pipeline's bus.
func (p *Pipeline) Bus() <-chan Message { return p.bus }

// Start transitions the pipeline to Playing and begins decoding in the
// background. It is an error to call Start twice without an intervening Stop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StatePlaying {
		p.mu.Unlock()
		return fmt.Errorf("mediapipeline: already playing")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StatePlaying
	p.mu.Unlock()

	pr, pw := io.Pipe()

	go p.runFFmpeg(runCtx, pw)
	go p.readFrames(pr)

	return nil
}

// Stop transitions the pipeline back to Null, terminating the ffmpeg
// subprocess.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	p.state = StateNull
}

func (p *Pipeline) runFFmpeg(ctx context.Context, out *io.PipeWriter) {
	defer out.Close()

	err := ffmpeg.Input(p.rtspURL, ffmpeg.KwArgs{"rtsp_transport": "tcp"}).
		Filter("select", ffmpeg.Args{fmt.Sprintf("not(mod(n\\,%d))", p.sampleEvery)}).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", p.width, p.height)}).
		Output("pipe:", ffmpeg.KwArgs{"format": "rawvideo", "pix_fmt": "rgb24"}).
		WithOutput(out).
		WithContext(ctx).
		Run()

	p.mu.Lock()
	p.state = StateNull
	p.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		p.bus <- Message{Kind: MessageError, Err: fmt.Errorf("mediapipeline: ffmpeg: %w", err)}
	} else {
		p.bus <- Message{Kind: MessageEos}
	}
}

func (p *Pipeline) readFrames(r io.Reader) {
	defer close(p.frames)

	frameSize := p.width * p.height * 3
	buf := bufio.NewReaderSize(r, frameSize)

	for {
		raw := make([]byte, frameSize)
		if _, err := io.ReadFull(buf, raw); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				p.logger.Warn("mediapipeline: frame read error", zap.Error(err))
			}
			return
		}
		p.frames <- rgbToNRGBA(raw, p.width, p.height)
	}
}

// rgbToNRGBA expands a packed rgb24 buffer (3 bytes/pixel, as emitted by
// ffmpeg's rawvideo muxer) into a stdlib image.NRGBA so it can be handed
// straight to the imaging package's PNG encoder.
func rgbToNRGBA(rgb []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, px := 0, 0; px < len(rgb); i, px = i+4, px+3 {
		img.Pix[i+0] = rgb[px+0]
		img.Pix[i+1] = rgb[px+1]
		img.Pix[i+2] = rgb[px+2]
		img.Pix[i+3] = 0xff
	}
	return img
}

// FrameID derives a deterministic frame identifier from a monitor and
// sequence number, matching the wire contract's FrameID field.
func FrameID(monitorID *string, seq int) string {
	if monitorID != nil {
		return fmt.Sprintf("%s-%d", *monitorID, seq)
	}
	return fmt.Sprintf("unattributed-%d", seq)
}

// NewFrame wraps a decoded image and its already-PNG-encoded bytes into the
// wire type published to the bus.
func NewFrame(frameID string, monitorID *string, png []byte, createdAt time.Time) model.Frame {
	return model.Frame{
		FrameID:     frameID,
		MonitorID:   monitorID,
		Picture:     png,
		PictureType: model.PictureTypePNG,
		CreatedAt:   createdAt,
	}
}
