package dataset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const apiPayload = `[
  {"Timestamp": "2024-06-07 10:00:00", "ip_address": "10.0.0.1", "user_id": 10001, "country": "USA", "sport": "Swimming", "duration": 30, "device": "Desktop", "channel": "Main Channel"},
  {"Timestamp": "2024-06-07 11:00:00", "ip_address": "10.0.0.2", "user_id": "10002", "country": "", "sport": "Soccer", "duration": "60", "device": "Mobile", "channel": "Live Sports"},
  {"Timestamp": "2024-06-08 09:00:00", "ip_address": "10.0.0.3", "user_id": 10003, "country": "Chile", "sport": "Tennis", "duration": 45.5, "device": null, "channel": "Live Sports"},
  {"Timestamp": "2024-06-08 12:00:00", "ip_address": "10.0.0.4", "user_id": 10004, "country": "Chile", "sport": "Tennis", "duration": 15, "device": "Tablet", "channel": "Main Channel"},
  {"Timestamp": "2024-06-09 12:00:00", "ip_address": "10.0.0.5", "user_id": 10005, "country": "USA", "sport": "Hockey", "duration": "NaN", "device": "Tablet", "channel": "Main Channel"}
]`

func TestAPIClientLoadsAndCleans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(apiPayload))
	}))
	t.Cleanup(srv.Close)

	client := NewAPIClient(APIConfig{Endpoint: srv.URL, Key: "secret"})
	ds, stats, err := client.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 2 || stats.Read != 5 || stats.DroppedBlank != 2 || stats.DroppedInvalid != 1 {
		t.Fatalf("unexpected result: len=%d stats=%+v", ds.Len(), stats)
	}
	if ds.Events[0].UserID != "10001" || ds.Events[1].Duration != 15 {
		t.Fatalf("unexpected events: %+v", ds.Events)
	}
}

func TestAPIClientNonSuccessIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, _, err := NewAPIClient(APIConfig{Endpoint: srv.URL, Key: "bad"}).Load(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestAPIClientMissingCredentialsIsNoData(t *testing.T) {
	_, _, err := NewAPIClient(APIConfig{Endpoint: "http://127.0.0.1:1"}).Load(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestAPIClientDelayHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(apiPayload))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	client := NewAPIClient(APIConfig{Endpoint: srv.URL, Key: "k", Delay: time.Minute})
	_, _, err := client.Load(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestAPIClientBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewAPIClient(APIConfig{Endpoint: srv.URL, Key: "k"})
	for i := 0; i < 5; i++ {
		if _, _, err := client.Load(context.Background()); !errors.Is(err, ErrNoData) {
			t.Fatalf("attempt %d: expected ErrNoData, got %v", i, err)
		}
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected breaker to stop requests after 3 failures, got %d calls", got)
	}
}
