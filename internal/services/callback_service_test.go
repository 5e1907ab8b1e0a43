package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"docharvest/internal/ratelimit"
	"docharvest/pkg/domain"
)

func ratelimitBucketOff() ratelimit.Bucket { return ratelimit.Bucket{} }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestCallbackDeliversSignedPayload(t *testing.T) {
	var got atomic.Value
	var sigHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(body)
		sigHeader.Store(r.Header.Get("X-Docharvest-Signature"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewCallbackService(nil, "secret", 3, "fixed", 1, 1, nil, ratelimitBucketOff())
	svc.Send(context.Background(), srv.URL, "https://example.com", domain.ExtractionResult{
		Status:        domain.StatusSuccess,
		Message:       "done",
		UploadedURIs:  []string{"s3://bkt/a.pdf"},
		UploadedCount: 1,
	})

	waitFor(t, 3*time.Second, func() bool { return got.Load() != nil })

	var payload map[string]any
	if err := json.Unmarshal(got.Load().([]byte), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["status"] != string(domain.StatusSuccess) {
		t.Errorf("expected status in payload, got %v", payload["status"])
	}
	if payload["files_uploaded"] != float64(1) {
		t.Errorf("expected files_uploaded 1, got %v", payload["files_uploaded"])
	}
	if sig, _ := sigHeader.Load().(string); sig == "" {
		t.Error("expected HMAC signature header")
	}
}

func TestCallbackRetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewCallbackService(nil, "", 5, "fixed", 1, 1, nil, ratelimitBucketOff())
	cs := svc.(*callbackService)
	cs.baseDelay = 10 * time.Millisecond
	cs.maxDelay = 10 * time.Millisecond

	svc.Send(context.Background(), srv.URL, "https://example.com", domain.ExtractionResult{Status: domain.StatusSuccess})

	waitFor(t, 3*time.Second, func() bool { return atomic.LoadInt32(&calls) >= 3 })
}

func TestCallbackSkipsEmptyURL(t *testing.T) {
	svc := NewCallbackService(nil, "", 1, "fixed", 1, 1, nil, ratelimitBucketOff())
	// Must be a no-op; nothing to assert beyond not panicking.
	svc.Send(context.Background(), "", "https://example.com", domain.ExtractionResult{Status: domain.StatusNoArtifacts})
}
