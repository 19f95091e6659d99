package webhook

import (
	"context"
	"math"
	"net/http"
	"time"
)

// RetryStrategy spaces out redeliveries of a summary webhook
type RetryStrategy struct {
	config RetryConfig
}

// NewRetryStrategy creates a new retry strategy
func NewRetryStrategy(config RetryConfig) *RetryStrategy {
	config.SetDefaults()
	return &RetryStrategy{config: config}
}

// CalculateDelay returns min(initial * multiplier^(attempt-1), max)
func (rs *RetryStrategy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delayMs := float64(rs.config.InitialDelayMs) * math.Pow(rs.config.Multiplier, float64(attempt-1))
	delayMs = math.Min(delayMs, float64(rs.config.MaxDelayMs))
	return time.Duration(delayMs) * time.Millisecond
}

// Wait sleeps for the delay after attempt, or until ctx ends
func (rs *RetryStrategy) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(rs.CalculateDelay(attempt))
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShouldRetry reports whether another attempt may succeed. Transport errors,
// throttling and server errors are retried; other client errors are final.
func (rs *RetryStrategy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= rs.config.MaxAttempts {
		return false
	}
	if statusCode == 0 {
		return err != nil
	}
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		statusCode >= http.StatusInternalServerError
}

// GetMaxAttempts returns the maximum number of attempts
func (rs *RetryStrategy) GetMaxAttempts() int {
	return rs.config.MaxAttempts
}
