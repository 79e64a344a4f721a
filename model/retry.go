package model

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/opper-ai/opper-agent-go/logging"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries int           // retry attempts, not counting the initial call
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // cap on the delay between retries
	Multiplier float64       // exponential backoff factor
	Jitter     bool          // +/- 50% jitter to avoid thundering herds
}

// DefaultRetryPolicy returns the default bounded policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   60 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay calculates the backoff for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := math.Min(
		float64(p.BaseDelay)*math.Pow(p.Multiplier, float64(attempt)),
		float64(p.MaxDelay),
	)
	if p.Jitter {
		d *= 0.5 + rand.Float64() // [0.5, 1.5)
	}
	return time.Duration(d)
}

// RetryClient decorates a Client with retries for transient-class faults.
// Permanent faults propagate immediately. Span methods pass through
// unwrapped; a failed span write is not worth repeating.
type RetryClient struct {
	inner  Client
	policy RetryPolicy
	logger logging.Logger
}

// RetryClientOptions configures NewRetryClient.
type RetryClientOptions struct {
	Policy RetryPolicy
	Logger logging.Logger
}

// NewRetryClient wraps inner with the given retry policy.
func NewRetryClient(inner Client, optFns ...func(o *RetryClientOptions)) *RetryClient {
	opts := RetryClientOptions{
		Policy: DefaultRetryPolicy(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RetryClient{inner: inner, policy: opts.Policy, logger: opts.Logger}
}

// Call performs the buffered call, retrying transient failures with
// exponential backoff up to the policy's bounded attempt count.
func (c *RetryClient) Call(ctx context.Context, req CallRequest) (*CallResponse, error) {
	resp, err := c.inner.Call(ctx, req)
	if err == nil {
		return resp, nil
	}

	for attempt := 0; attempt < c.policy.MaxRetries; attempt++ {
		if !IsRetryable(err) {
			return nil, err
		}
		delay := c.policy.Delay(attempt)
		c.logger.Warn("model call failed, retrying",
			"call", req.Name,
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		resp, err = c.inner.Call(ctx, req)
		if err == nil {
			return resp, nil
		}
	}
	return nil, err
}

// Stream opens the streaming call, retrying only when the source fails
// before delivering any event. Once data has flowed the stream is handed
// through untouched; replaying a half-consumed stream would duplicate
// fragments.
func (c *RetryClient) Stream(ctx context.Context, req CallRequest) (<-chan StreamEvent, <-chan error) {
	out := make(chan StreamEvent, 32)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)

		for attempt := 0; ; attempt++ {
			delivered, err := c.pump(ctx, req, out)
			if err == nil {
				return
			}
			if delivered || attempt >= c.policy.MaxRetries || !IsRetryable(err) {
				errOut <- err
				return
			}
			delay := c.policy.Delay(attempt)
			c.logger.Warn("model stream failed before first event, retrying",
				"call", req.Name,
				"attempt", attempt+1,
				"delay_ms", delay.Milliseconds(),
				"error", err.Error(),
			)
			select {
			case <-ctx.Done():
				errOut <- ctx.Err()
				return
			case <-time.After(delay):
			}
		}
	}()

	return out, errOut
}

// pump drains one inner stream attempt into out, reporting whether any event
// was forwarded before a failure.
func (c *RetryClient) pump(ctx context.Context, req CallRequest, out chan<- StreamEvent) (delivered bool, err error) {
	events, errs := c.inner.Stream(ctx, req)

	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			select {
			case out <- ev:
				delivered = true
			case <-ctx.Done():
				return delivered, ctx.Err()
			}
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if e != nil {
				return delivered, e
			}
		}
	}
	return delivered, nil
}

// CreateSpan passes through to the wrapped client.
func (c *RetryClient) CreateSpan(ctx context.Context, opts SpanOptions) (*Span, error) {
	return c.inner.CreateSpan(ctx, opts)
}

// UpdateSpan passes through to the wrapped client.
func (c *RetryClient) UpdateSpan(ctx context.Context, id string, update SpanUpdate) error {
	return c.inner.UpdateSpan(ctx, id, update)
}
