// Package facescan turns a short burst of camera frames into one mood
// verdict: it samples several frames, keeps the sharpest, and averages
// repeated classifier passes over it.
package facescan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// State of a Sampler.
type State int

const (
	Idle State = iota
	CameraActive
	Sampling
	ClassifierAveraging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CameraActive:
		return "camera_active"
	case Sampling:
		return "sampling"
	case ClassifierAveraging:
		return "classifier_averaging"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Messages shown to the user.
const (
	MsgCameraUnavailable = "Could not access camera. Please allow camera permissions."
	MsgAnalysisFailed    = "Analysis failed. Try again."
	MsgRateLimited       = "Rate limited. Try again shortly."
	MsgUnavailable       = "Face analysis is unavailable right now."
)

// Sampler errors.
var (
	ErrCamera  = errors.New("camera unavailable")
	ErrNotOpen = errors.New("camera is not open")
	ErrBusy    = errors.New("capture already in progress")
	ErrClosed  = errors.New("sampler closed")
)

// Error carries a message suitable for direct display.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Config tunes the sampling burst and the ensemble.
type Config struct {
	Frames   int
	Interval time.Duration
	Passes   int
	Parallel bool
}

// DefaultConfig is five frames 150ms apart and three sequential passes.
func DefaultConfig() Config {
	return Config{Frames: 5, Interval: 150 * time.Millisecond, Passes: 3}
}

// Progress is reported as the capture advances.
type Progress struct {
	Stage string `json:"stage"`
	Step  int    `json:"step"`
	Total int    `json:"total"`
}

// Sampler drives Idle → CameraActive → Sampling → ClassifierAveraging.
// A successful capture stops the camera and returns to Idle; a failed one
// returns to CameraActive so the caller can retry on the same stream.
type Sampler struct {
	Camera     Camera
	Classifier Classifier
	Wait       WaitFunc
	Config     Config
	OnProgress func(Progress)

	mu     sync.Mutex
	state  State
	stream Stream
	cancel context.CancelFunc
}

// NewSampler wires a sampler with SleepWait.
func NewSampler(cam Camera, cls Classifier, cfg Config) *Sampler {
	return &Sampler{Camera: cam, Classifier: cls, Wait: SleepWait, Config: cfg}
}

// State reports the current state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sampler) progress(stage string, step, total int) {
	if s.OnProgress != nil {
		s.OnProgress(Progress{Stage: stage, Step: step, Total: total})
	}
}

// Open acquires the camera. Opening an already open sampler is a no-op.
func (s *Sampler) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return nil
	}
	st, err := s.Camera.Open(ctx)
	if err != nil {
		return &Error{Message: MsgCameraUnavailable, Err: fmt.Errorf("%w: %v", ErrCamera, err)}
	}
	s.stream = st
	s.state = CameraActive
	return nil
}

// Close stops the stream and abandons any capture in flight.
func (s *Sampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	var err error
	if s.stream != nil {
		err = s.stream.Close()
		s.stream = nil
	}
	s.state = Idle
	return err
}

func (s *Sampler) begin(ctx context.Context) (context.Context, Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Idle:
		return nil, nil, ErrNotOpen
	case Sampling, ClassifierAveraging:
		return nil, nil, ErrBusy
	}
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Sampling
	return cctx, s.stream, nil
}

// end settles the state after a capture unless Close got there first.
func (s *Sampler) end(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil || s.state == Idle {
		return
	}
	s.cancel()
	s.cancel = nil
	if !ok {
		s.state = CameraActive
		return
	}
	if s.stream != nil {
		_ = s.stream.Close()
		s.stream = nil
	}
	s.state = Idle
}

// Capture samples frames, keeps the sharpest and classifies it Passes
// times. After Close the in-flight results are discarded and ErrClosed is
// returned.
func (s *Sampler) Capture(ctx context.Context) (Result, error) {
	ctx, span := otel.Tracer("services/facescan").Start(ctx, "Capture",
		trace.WithAttributes(
			attribute.Int("frames", s.Config.Frames),
			attribute.Int("passes", s.Config.Passes),
			attribute.Bool("parallel", s.Config.Parallel),
		))
	defer span.End()

	cctx, stream, err := s.begin(ctx)
	if err != nil {
		return Result{}, err
	}
	res, err := s.capture(cctx, stream)
	if cctx.Err() != nil && ctx.Err() == nil {
		// Close cancelled the capture
		s.end(false)
		return Result{}, ErrClosed
	}
	s.end(err == nil)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("face scan failed")
		return Result{}, &Error{Message: MsgAnalysisFailed, Err: err}
	}
	span.SetAttributes(attribute.String("mood", string(res.Mood)), attribute.Int("confidence", res.Confidence))
	return res, nil
}

func (s *Sampler) capture(ctx context.Context, stream Stream) (Result, error) {
	frames := max(s.Config.Frames, 1)
	wait := s.Wait
	if wait == nil {
		wait = SleepWait
	}

	s.progress("Sampling frames for best quality", 0, frames)
	imgs := make([]image.Image, 0, frames)
	for i := 0; i < frames; i++ {
		if i > 0 {
			if err := wait(ctx, s.Config.Interval); err != nil {
				return Result{}, err
			}
		}
		img, err := stream.Frame(ctx)
		if errors.Is(err, io.EOF) && len(imgs) > 0 {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("frame %d: %w", i, err)
		}
		imgs = append(imgs, img)
		s.progress("Sampling frames for best quality", i+1, frames)
	}

	best, score := BestFrame(imgs)
	log.Debug().Int("frames", len(imgs)).Int("best", best).Float64("sharpness", score).Msg("frame selected")
	b64, err := Preprocess(imgs[best])
	if err != nil {
		return Result{}, err
	}

	s.setStateIfActive(ClassifierAveraging)
	results, err := s.classify(ctx, b64)
	if err != nil {
		return Result{}, err
	}
	s.progress("Averaging predictions", len(results), len(results))
	return Average(results), nil
}

func (s *Sampler) setStateIfActive(st State) {
	s.mu.Lock()
	if s.state != Idle {
		s.state = st
	}
	s.mu.Unlock()
}

func (s *Sampler) classify(ctx context.Context, b64 string) ([]Result, error) {
	passes := max(s.Config.Passes, 1)
	results := make([]Result, passes)

	if !s.Config.Parallel {
		for p := 0; p < passes; p++ {
			s.progress(fmt.Sprintf("Running inference (pass %d/%d)", p+1, passes), p+1, passes)
			r, err := s.Classifier.Classify(ctx, Request{ImageBase64: b64, PassIndex: p})
			if err != nil {
				return nil, fmt.Errorf("pass %d: %w", p, err)
			}
			results[p] = r
		}
		return results, nil
	}

	s.progress(fmt.Sprintf("Running inference (%d passes)", passes), 0, passes)
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < passes; p++ {
		g.Go(func() error {
			r, err := s.Classifier.Classify(gctx, Request{ImageBase64: b64, PassIndex: p})
			if err != nil {
				return fmt.Errorf("pass %d: %w", p, err)
			}
			results[p] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// UserMessage maps a Capture error to the text shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimited):
		return MsgRateLimited
	case errors.Is(err, ErrServiceUnavailable):
		return MsgUnavailable
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return MsgAnalysisFailed
}
