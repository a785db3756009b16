package facescan

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg" // decoders for uploaded frames
	_ "image/png"
	"io"
	"sync"
	"time"
)

// Camera opens a live frame stream.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames until closed. Frame returns io.EOF when a finite
// stream is exhausted.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// SleepWait waits on a timer.
func SleepWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoWait returns immediately. It pairs with FrameCamera, whose frames were
// already spaced out by the client that captured them.
func NoWait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

// ErrNoFrames is returned by a FrameCamera with nothing to play back.
var ErrNoFrames = errors.New("no frames")

// FrameCamera plays back frames captured elsewhere.
type FrameCamera struct {
	Frames []image.Image
}

// DecodeFrames decodes uploaded JPEG or PNG frames.
func DecodeFrames(raw [][]byte) (*FrameCamera, error) {
	fc := &FrameCamera{Frames: make([]image.Image, 0, len(raw))}
	for _, b := range raw {
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		fc.Frames = append(fc.Frames, img)
	}
	return fc, nil
}

func (c *FrameCamera) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(c.Frames) == 0 {
		return nil, ErrNoFrames
	}
	return &frameStream{frames: c.Frames}, nil
}

type frameStream struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	closed bool
}

func (s *frameStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *frameStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
