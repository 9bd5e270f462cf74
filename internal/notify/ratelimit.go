package notify

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// RateLimitedSender wraps a Sender with a token bucket so bursts of
// notifications from a large import do not overwhelm the transport.
// It is safe for concurrent use because rate.Limiter is goroutine-safe.
type RateLimitedSender struct {
	next    Sender
	limiter *rate.Limiter
}

// NewRateLimitedSender creates a RateLimitedSender.
// ratePerSecond is the sustained send rate; burst is the bucket size.
func NewRateLimitedSender(next Sender, ratePerSecond float64, burst int) *RateLimitedSender {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedSender{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Send waits for a token, then delegates. It returns the context error if
// ctx ends first.
func (s *RateLimitedSender) Send(ctx context.Context, to, subject, body string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return s.next.Send(ctx, to, subject, body)
}

// Close closes the wrapped sender when it holds resources.
func (s *RateLimitedSender) Close() error {
	if c, ok := s.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
