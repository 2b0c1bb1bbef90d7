package backendclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kestrel-proxy/dispatchcore/internal/apierror"
)

func TestForward_GETRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/foo" {
			t.Errorf("backend received path %q, want /foo", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	resp, err := c.Forward(context.Background(), http.MethodGet, "foo", nil)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "hello" {
		t.Errorf("Forward() = %+v, want 200 hello", resp)
	}
}

func TestForward_POSTEchoesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	resp, err := c.Forward(context.Background(), http.MethodPost, "echo", []byte(`{"k":1}`))
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if string(resp.Body) != `{"k":1}` {
		t.Errorf("Forward() body = %q, want {\"k\":1}", resp.Body)
	}
}

func TestForward_RejectsUnsupportedMethod(t *testing.T) {
	c := New("http://example.invalid/")
	_, err := c.Forward(context.Background(), http.MethodPatch, "foo", nil)
	if err == nil {
		t.Fatal("Forward() with PATCH should fail")
	}
	if apierror.StatusCode(err) != http.StatusMethodNotAllowed {
		t.Errorf("StatusCode() = %d, want 405", apierror.StatusCode(err))
	}
}

func TestProbe_TrueOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("probe hit %q, want /status", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	if !c.Probe(context.Background()) {
		t.Error("Probe() = false, want true for 2xx /status")
	}
}

func TestProbe_FalseOnNonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	if c.Probe(context.Background()) {
		t.Error("Probe() = true, want false for 503")
	}
}

func TestProbe_FalseOnNetworkError(t *testing.T) {
	c := New("http://127.0.0.1:1")
	if c.Probe(context.Background()) {
		t.Error("Probe() = true, want false for unreachable backend")
	}
}
