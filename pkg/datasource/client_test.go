package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient() *Client {
	return NewClient(ClientConfig{
		UserAgent: "rank-lookup-test/1.0",
		Timeout:   2 * time.Second,
		Retry:     fastPolicy,
	}, zerolog.Nop())
}

func TestClient_GetSuccess(t *testing.T) {
	var gotUA, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotKey = r.Header.Get("X-Test")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	header := http.Header{}
	header.Set("X-Test", "abc")

	body, err := newTestClient().Get(context.Background(), server.URL, header)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("body = %q", body)
	}
	if gotUA != "rank-lookup-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotKey != "abc" {
		t.Errorf("X-Test = %q", gotKey)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestClient().Get(context.Background(), server.URL, nil)

	var se *SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound || se.ErrorClass != ErrorClassClient {
		t.Errorf("got status %d class %q", se.StatusCode, se.ErrorClass)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := newTestClient().Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_RetryExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient().Get(context.Background(), server.URL, nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient().Get(context.Background(), url, nil)
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if classifyError(err) != ErrorClassNetwork {
		t.Errorf("class = %q, want network", classifyError(err))
	}
}

func TestClient_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{MaxBodyBytes: 4, Retry: fastPolicy}, zerolog.Nop())
	body, err := c.Get(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != "0123" {
		t.Errorf("body = %q, want truncated to 4 bytes", body)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{}, zerolog.Nop())

	if c.config.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q", c.config.UserAgent)
	}
	if c.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v", c.config.Timeout)
	}
	if c.config.MaxBodyBytes != 4<<20 {
		t.Errorf("MaxBodyBytes = %d", c.config.MaxBodyBytes)
	}
}
