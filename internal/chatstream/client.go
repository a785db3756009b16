package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-wellness-backend/internal/observability"
)

// Fallback notices appended as the assistant turn when the exchange fails.
const (
	MsgRateLimited = "Rate limit exceeded. Please wait a moment."
	MsgUnavailable = "AI service unavailable. Please try again later."
	MsgFailed      = "I'm sorry, I couldn't respond right now. Please try again in a moment. 💚"
)

// Upstream failure kinds.
var (
	ErrRateLimited = errors.New("chat gateway rate limited")
	ErrUnavailable = errors.New("chat gateway unavailable")
	ErrUpstream    = errors.New("chat gateway failed")
)

// UpstreamError describes a failed exchange. Message is the notice that was
// appended to the transcript.
type UpstreamError struct {
	Status  int
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat gateway: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("chat gateway: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Request is the gateway payload. Context carries the user's wellness state.
type Request struct {
	Messages []Message `json:"messages"`
	Context  any       `json:"context,omitempty"`
}

// Client streams completions from the gateway.
type Client struct {
	URL    string
	APIKey string
	HTTP   *http.Client
}

// NewClient returns a client whose transport waits at most timeout for the
// response headers. The body is read for as long as ctx allows.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	return &Client{URL: url, APIKey: apiKey, HTTP: &http.Client{Transport: tr}}
}

const readChunk = 4 << 10

// Stream posts req and feeds the response body to an Assembler, calling
// onDelta with each fragment. It returns req.Messages followed by the
// assistant turn.
//
// On a non-2xx status or a broken read the partial reply is kept, a
// fallback notice is appended, and the transcript is returned together
// with an *UpstreamError. When ctx ends first, Stream returns ctx.Err() and
// no transcript.
func (c *Client) Stream(ctx context.Context, req Request, onDelta func(string)) ([]Message, error) {
	ctx, span := otel.Tracer("services/chatstream").Start(ctx, "Stream",
		trace.WithAttributes(attribute.Int("messages", len(req.Messages))))
	defer span.End()

	asm := NewAssembler(req.Messages, onDelta)
	err := c.stream(ctx, req, asm)
	observability.ChatFragments.Add(float64(asm.Fragments()))
	span.SetAttributes(attribute.Int("fragments", asm.Fragments()))

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		var ue *UpstreamError
		if !errors.As(err, &ue) {
			ue = &UpstreamError{Message: MsgFailed, Err: fmt.Errorf("%w: %v", ErrUpstream, err)}
		}
		observability.UpstreamFailures.WithLabelValues("chat", reason(ue)).Inc()
		log.Warn().Err(ue).Int("fragments", asm.Fragments()).Msg("chat stream failed")
		asm.fail(ue.Message)
		return asm.Messages(), ue
	}
	return asm.Messages(), nil
}

func reason(e *UpstreamError) string {
	switch {
	case errors.Is(e, ErrRateLimited):
		return "rate_limited"
	case errors.Is(e, ErrUnavailable):
		return "unavailable"
	case e.Status != 0:
		return "status"
	}
	return "transport"
}

func (c *Client) stream(ctx context.Context, req Request, asm *Assembler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	hr.Header.Set("Content-Type", "application/json")
	hr.Header.Set("Accept", "text/event-stream")
	if c.APIKey != "" {
		hr.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hr)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &UpstreamError{Status: resp.StatusCode, Message: MsgRateLimited, Err: ErrRateLimited}
	case resp.StatusCode == http.StatusPaymentRequired:
		return &UpstreamError{Status: resp.StatusCode, Message: MsgUnavailable, Err: ErrUnavailable}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &UpstreamError{Status: resp.StatusCode, Message: MsgFailed, Err: ErrUpstream}
	}

	buf := make([]byte, readChunk)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			_, _ = asm.Write(buf[:n])
		}
		if errors.Is(rerr, io.EOF) {
			asm.Finish()
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
