package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// RetryPolicy bounds transport-level retries of a single completion.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	Timeout    time.Duration // per attempt
	BaseDelay  time.Duration // doubled after every failed attempt
}

type retrying struct {
	inner  Provider
	policy RetryPolicy
	logger *slog.Logger
}

// WithRetry wraps p so that each attempt gets its own timeout and transient
// failures (timeouts, 429, 5xx) are retried with exponential backoff.
func WithRetry(p Provider, policy RetryPolicy, logger *slog.Logger) Provider {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	return &retrying{inner: p, policy: policy, logger: logger}
}

func (r *retrying) Name() string { return r.inner.Name() }

func (r *retrying) Complete(ctx context.Context, req Request) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		text, err := r.attempt(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil || !Transient(err) || attempt == r.policy.MaxRetries {
			break
		}

		backoff := r.policy.BaseDelay * time.Duration(1<<attempt)
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests && se.RetryAfter > 0 {
			backoff = se.RetryAfter
		}

		r.logger.Warn("generation attempt failed, retrying",
			"provider", r.inner.Name(),
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}
	return "", lastErr
}

func (r *retrying) attempt(ctx context.Context, req Request) (string, error) {
	if r.policy.Timeout <= 0 {
		return r.inner.Complete(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
	defer cancel()

	text, err := r.inner.Complete(attemptCtx, req)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
		return "", fmt.Errorf("attempt timed out after %s: %w", r.policy.Timeout, err)
	}
	return text, err
}

// Transient reports whether err is worth retrying at the transport level.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
