package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chi1180/better-hac/internal/config"
	"github.com/chi1180/better-hac/internal/store"
	"github.com/go-chi/chi/v5"
)

func newTestProxy(t *testing.T, upstream *httptest.Server, imageTimeout time.Duration) http.Handler {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	cfg := &config.Config{
		Port:            "0",
		UpstreamBaseURL: upstream.URL,
		DBPath:          "ignored",
		Timeout: config.TimeoutConfig{
			Proxy:        2 * time.Second,
			Image:        imageTimeout,
			SessionCheck: time.Second,
			HealthCheck:  time.Second,
		},
	}

	h := NewHandler(NewUpstream(upstream.URL, cfg.Timeout.Proxy), repo, cfg)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	r.NotFound(NotFound)
	r.MethodNotAllowed(NotFound)
	return r
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return body
}

func TestGenerateImage_Passthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ImagePath {
			t.Errorf("Expected path %s, got %s", ImagePath, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode upstream request: %v", err)
		}
		if req["prompt"] != "a cat" {
			t.Errorf("Expected prompt %q, got %q", "a cat", req["prompt"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"http://x/y.png"}`))
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, 5*time.Second)

	req := httptest.NewRequest(http.MethodPost, ImagePath, strings.NewReader(`{"prompt":"a cat"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["url"] != "http://x/y.png" {
		t.Errorf("Expected url passthrough, got %v", body["url"])
	}
}

func TestGenerateImage_TimeoutMapsTo504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`{"url":"late"}`))
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, 50*time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, ImagePath, strings.NewReader(`{"prompt":"slow"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("Expected status 504, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Errorf("Expected success false, got %v", body["success"])
	}
}

func TestLogin_ForwardsFormAndRelaysSetCookie(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Expected form content type, got %q", ct)
		}
		data, _ := io.ReadAll(r.Body)
		values, err := url.ParseQuery(string(data))
		if err != nil {
			t.Errorf("Failed to parse form: %v", err)
		}
		if values.Get("email") != "kid@example.com" || values.Get("password") != "secret" {
			t.Errorf("Unexpected credentials: %v", values)
		}
		w.Header().Set("Set-Cookie", "PHPSESSID=abc123; Path=/")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, time.Second)

	form := url.Values{}
	form.Set("email", "kid@example.com")
	form.Set("password", "secret")
	req := httptest.NewRequest(http.MethodPost, LoginPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	cookie := resp.Header.Get("Set-Cookie")
	if !strings.Contains(cookie, "PHPSESSID=abc123") {
		t.Errorf("Expected Set-Cookie relay, got %q", cookie)
	}
}

func TestDashboard_RelaysUpstreamErrorStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie := r.Header.Get("Cookie"); cookie != "PHPSESSID=abc123" {
			t.Errorf("Expected forwarded cookie, got %q", cookie)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"not logged in"}`))
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, time.Second)

	req := httptest.NewRequest(http.MethodGet, DashboardPath, nil)
	req.Header.Set("Cookie", "PHPSESSID=abc123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	// Upstream 4xx is passthrough, not a proxy failure.
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "not logged in") {
		t.Errorf("Expected upstream body relayed, got %q", string(data))
	}
}

func TestChat_ForwardsActionPayload(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode chat payload: %v", err)
		}
		if req["action"] != "send" || req["message"] != "hello" {
			t.Errorf("Unexpected chat payload: %v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"hi","thread_id":"t1"}`))
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, time.Second)

	req := httptest.NewRequest(http.MethodPost, ChatPath,
		strings.NewReader(`{"action":"send","message":"hello","thread_id":null}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["reply"] != "hi" {
		t.Errorf("Expected reply relay, got %v", body["reply"])
	}
}

func TestUpstream5xx_MapsTo500Envelope(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, time.Second)

	req := httptest.NewRequest(http.MethodGet, DashboardPath, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["success"] != false {
		t.Errorf("Expected success false, got %v", body["success"])
	}
}

func TestNotFound_Envelope(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["error"] != "Not Found" {
		t.Errorf("Expected error %q, got %v", "Not Found", body["error"])
	}
	if body["message"] != "Endpoint GET /nope does not exist" {
		t.Errorf("Unexpected message: %v", body["message"])
	}
}

func TestHealth(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer upstream.Close()

	router := newTestProxy(t, upstream, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy status, got %v", body["status"])
	}
	if body["uptime"] == nil {
		t.Error("Expected uptime in health payload")
	}
}
