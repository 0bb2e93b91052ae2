package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"customer-service": "http://localhost:8090"}
	host, port, err := r.DiscoverServiceInstance("customer-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "localhost" || port != 8090 {
		t.Fatalf("unexpected instance %s:%d", host, port)
	}
	if _, _, err := r.DiscoverServiceInstance("missing"); err == nil {
		t.Fatalf("expected error for unknown service")
	}
}

func TestDoDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/echo" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var in map[string]int
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]int{"got": in["n"]})
	}))
	defer srv.Close()

	c := NewClient(noop.NewTracerProvider().Tracer("test"), StaticResolver{"echo": srv.URL})
	var out map[string]int
	if err := c.Do(context.Background(), http.MethodPost, "echo", "/echo", map[string]int{"n": 7}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["got"] != 7 {
		t.Fatalf("expected 7, got %v", out)
	}
}

func TestDoReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"X"}`))
	}))
	defer srv.Close()

	c := NewClient(noop.NewTracerProvider().Tracer("test"), StaticResolver{"svc": srv.URL})
	err := c.Do(context.Background(), http.MethodGet, "svc", "/missing", nil, nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || string(statusErr.Body) != `{"code":"X"}` {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}
