package facescan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/index"
	"github.com/tbourn/go-wellness-backend/internal/observability"
)

// Classifier errors. Every other failure wraps ErrClassifierFailed.
var (
	ErrRateLimited        = errors.New("classifier rate limited")
	ErrServiceUnavailable = errors.New("classifier unavailable")
	ErrClassifierFailed   = errors.New("classification failed")
)

// Request is one classification pass. PassIndex lets the service vary its
// augmentation between passes.
type Request struct {
	ImageBase64 string `json:"imageBase64"`
	PassIndex   int    `json:"passIndex"`
}

// Classifier labels a single preprocessed frame.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, req Request) (Result, error)

func (f ClassifierFunc) Classify(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

const maxClassifierBody = 1 << 20

// HTTPClassifier calls the face classification endpoint.
type HTTPClassifier struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewHTTPClassifier returns a client with its own timeout.
func NewHTTPClassifier(url, apiKey string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{URL: url, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

type classifierResponse struct {
	Mood        string   `json:"mood"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	WellnessTip string   `json:"wellness_tip"`
	HealthFlags []string `json:"health_flags"`
	Error       string   `json:"error"`
}

// Classify posts req and decodes the verdict. Unknown moods are reported
// as neutral and confidence is clamped to [0,100].
func (c *HTTPClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	res, err := c.classify(ctx, req)
	observability.ClassifierCalls.WithLabelValues(outcome(err)).Inc()
	if err != nil && ctx.Err() == nil {
		observability.UpstreamFailures.WithLabelValues("classifier", outcome(err)).Inc()
	}
	return res, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

func (c *HTTPClassifier) classify(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	hr.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		hr.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hr)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: %v", ErrClassifierFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, ErrRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return Result{}, ErrServiceUnavailable
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Result{}, fmt.Errorf("%w: status %d", ErrClassifierFailed, resp.StatusCode)
	}

	var cr classifierResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxClassifierBody)).Decode(&cr); err != nil {
		return Result{}, fmt.Errorf("%w: decode: %v", ErrClassifierFailed, err)
	}
	if cr.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrClassifierFailed, cr.Error)
	}
	flags := cr.HealthFlags
	if flags == nil {
		flags = []string{}
	}
	return Result{
		Mood:        domain.ParseMood(cr.Mood),
		Confidence:  index.Clamp(index.Round(cr.Confidence), 0, 100),
		Description: cr.Description,
		WellnessTip: cr.WellnessTip,
		HealthFlags: flags,
	}, nil
}
