package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

// Attempt records one delivery try
type Attempt struct {
	Timestamp    time.Time
	StatusCode   int
	ResponseBody string
	DurationMs   int64
	Error        string
}

// Delivery is the outcome of sending one payload
type Delivery struct {
	URL      string
	Attempts []Attempt
	Status   string // delivered, failed
}

// Dispatcher posts payloads to webhooks with retry and a circuit breaker
type Dispatcher struct {
	httpClient     *http.Client
	circuitBreaker *CircuitBreaker
}

// NewDispatcher creates a new webhook dispatcher
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		circuitBreaker: NewCircuitBreaker(5, 60*time.Second),
	}
}

// Send delivers payload to endpoint, retrying per the endpoint policy
func (d *Dispatcher) Send(ctx context.Context, endpoint Endpoint, payload any) (*Delivery, error) {
	endpoint.SetDefaults()
	delivery := &Delivery{URL: endpoint.URL, Status: "failed"}

	if !d.circuitBreaker.CanAttempt() {
		slog.Warn("Circuit breaker is open, skipping webhook delivery",
			"webhook_url", endpoint.URL,
			"circuit_state", d.circuitBreaker.GetStateName(),
		)
		return delivery, fmt.Errorf("circuit breaker is open")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return delivery, fmt.Errorf("failed to marshal payload: %w", err)
	}

	retryStrategy := NewRetryStrategy(endpoint.Retry)

	for attempt := 1; attempt <= retryStrategy.GetMaxAttempts(); attempt++ {
		result, err := d.deliver(ctx, endpoint, body)
		delivery.Attempts = append(delivery.Attempts, result)

		if err == nil {
			slog.Info("Webhook delivered",
				"webhook_url", endpoint.URL,
				"attempt", attempt,
				"status_code", result.StatusCode,
			)
			delivery.Status = "delivered"
			d.circuitBreaker.RecordSuccess()
			return delivery, nil
		}

		if !retryStrategy.ShouldRetry(attempt, result.StatusCode, err) {
			break
		}

		delay := retryStrategy.CalculateDelay(attempt)
		slog.Warn("Webhook delivery failed, retrying",
			"webhook_url", endpoint.URL,
			"attempt", attempt,
			"next_retry_ms", delay.Milliseconds(),
			"error", result.Error,
		)

		if err := retryStrategy.Wait(ctx, attempt); err != nil {
			d.circuitBreaker.RecordFailure()
			return delivery, err
		}
	}

	d.circuitBreaker.RecordFailure()
	return delivery, fmt.Errorf("webhook delivery failed after %d attempts", len(delivery.Attempts))
}

func (d *Dispatcher) deliver(ctx context.Context, endpoint Endpoint, body []byte) (Attempt, error) {
	start := time.Now()
	attempt := Attempt{Timestamp: start.UTC()}

	req, err := http.NewRequestWithContext(ctx, endpoint.Method, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		attempt.Error = fmt.Sprintf("Failed to create request: %v", err)
		return attempt, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range endpoint.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		attempt.Error = fmt.Sprintf("Request failed: %v", err)
		attempt.DurationMs = time.Since(start).Milliseconds()
		return attempt, err
	}
	defer resp.Body.Close()

	// Only a short excerpt of the response is kept
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	attempt.StatusCode = resp.StatusCode
	attempt.ResponseBody = string(respBody)
	attempt.DurationMs = time.Since(start).Milliseconds()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		attempt.Error = fmt.Sprintf("Webhook returned status %d", resp.StatusCode)
		return attempt, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return attempt, nil
}

// GetCircuitBreakerState returns the current circuit breaker state
func (d *Dispatcher) GetCircuitBreakerState() string {
	return d.circuitBreaker.GetStateName()
}

// Notifier posts a summary of every finished job to one endpoint
type Notifier struct {
	dispatcher *Dispatcher
	endpoint   Endpoint
}

// NewNotifier creates a webhook notifier
func NewNotifier(dispatcher *Dispatcher, endpoint Endpoint) *Notifier {
	return &Notifier{dispatcher: dispatcher, endpoint: endpoint}
}

// Notify posts the job summary
func (n *Notifier) Notify(ctx context.Context, job *model.Job) error {
	_, err := n.dispatcher.Send(ctx, n.endpoint, FormatSummaryPayload(job))
	return err
}
