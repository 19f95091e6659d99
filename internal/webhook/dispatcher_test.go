package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dandantas/tasyrunner/internal/model"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxAttempts: max, InitialDelayMs: 1, MaxDelayMs: 2, Multiplier: 2}
}

func TestDispatcher_Send(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantErr      bool
		wantAttempts int
	}{
		{name: "delivered", statuses: []int{200}, wantAttempts: 1},
		{name: "server error then delivered", statuses: []int{503, 200}, wantAttempts: 2},
		{name: "client error is final", statuses: []int{400}, wantErr: true, wantAttempts: 1},
		{name: "retries exhausted", statuses: []int{500, 500, 500}, wantErr: true, wantAttempts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				if n >= len(tt.statuses) {
					n = len(tt.statuses) - 1
				}
				w.WriteHeader(tt.statuses[n])
			}))
			defer srv.Close()

			d := NewDispatcher(time.Second)
			delivery, err := d.Send(context.Background(), Endpoint{URL: srv.URL, Retry: fastRetry(3)}, map[string]string{"text": "hi"})

			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if len(delivery.Attempts) != tt.wantAttempts {
				t.Errorf("expected %d attempts, got %d", tt.wantAttempts, len(delivery.Attempts))
			}
		})
	}
}

func TestDispatcher_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDispatcher(time.Second)
	endpoint := Endpoint{URL: srv.URL, Retry: fastRetry(1)}
	for i := 0; i < 5; i++ {
		_, _ = d.Send(context.Background(), endpoint, "x")
	}

	if d.GetCircuitBreakerState() != "open" {
		t.Fatalf("expected open circuit, got %s", d.GetCircuitBreakerState())
	}
	before := calls.Load()
	if _, err := d.Send(context.Background(), endpoint, "x"); err == nil {
		t.Errorf("expected open circuit to reject delivery")
	}
	if calls.Load() != before {
		t.Errorf("no request should reach the endpoint while the circuit is open")
	}
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	now := time.Now()
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	if cb.CanAttempt() {
		t.Fatalf("circuit should be open")
	}

	now = now.Add(time.Minute)
	if !cb.CanAttempt() || cb.GetStateName() != "half-open" {
		t.Fatalf("expected half-open after cooldown, got %s", cb.GetStateName())
	}
	cb.RecordSuccess()
	if cb.GetStateName() != "closed" {
		t.Errorf("expected closed after a successful probe, got %s", cb.GetStateName())
	}
}

func TestRetryStrategy_CalculateDelay(t *testing.T) {
	rs := NewRetryStrategy(RetryConfig{MaxAttempts: 5, InitialDelayMs: 100, MaxDelayMs: 350, Multiplier: 2})

	want := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond}
	for attempt, w := range want {
		if got := rs.CalculateDelay(attempt); got != w {
			t.Errorf("attempt %d: expected %s, got %s", attempt, w, got)
		}
	}
}

func TestNotifier_PostsJobSummary(t *testing.T) {
	var got SummaryPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ended := time.Now()
	job := &model.Job{
		ID:        "j1",
		Type:      model.JobTypeBoletos,
		ItemCount: 3,
		StartedAt: ended.Add(-time.Minute),
		EndedAt:   &ended,
		Results: []model.ItemResult{
			{ItemID: "1", Status: model.ItemSuccess},
			{ItemID: "2", Status: model.ItemFailure, Reason: model.ReasonEmptyEmail},
			{ItemID: "3", Status: model.ItemFailure, Reason: model.ReasonTimeout},
		},
	}

	n := NewNotifier(NewDispatcher(time.Second), Endpoint{URL: srv.URL, Retry: fastRetry(1)})
	if err := n.Notify(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(got.Text, "1/3 succeeded") {
		t.Errorf("unexpected summary text %q", got.Text)
	}
	if got.Metadata["severity"] != "warning" {
		t.Errorf("technical failures should raise severity, got %v", got.Metadata["severity"])
	}
}
