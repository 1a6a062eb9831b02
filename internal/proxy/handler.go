package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chi1180/better-hac/internal/config"
	"github.com/chi1180/better-hac/internal/shared"
	"github.com/chi1180/better-hac/internal/store"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the BFF forwarding routes.
type Handler struct {
	up        *Upstream
	repo      store.Repository
	cfg       *config.Config
	startedAt time.Time
}

// NewHandler creates the proxy handler.
func NewHandler(up *Upstream, repo store.Repository, cfg *config.Config) *Handler {
	return &Handler{
		up:        up,
		repo:      repo,
		cfg:       cfg,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers the forwarding and status routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Status)
	r.Get("/health", h.Health)
	r.Post(LoginPath, h.Login)
	r.Get(DashboardPath, h.Dashboard)
	r.Post(ChatPath, h.Chat)
	r.Post(ImagePath, h.GenerateImage)
}

// Status returns a lightweight liveness payload.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	shared.JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"message":   "Better HAC BFF server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Health returns uptime and dependency status. Hit by the keep-alive pinger.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout.HealthCheck)
	defer cancel()

	uptime := time.Since(h.startedAt)
	payload := map[string]interface{}{
		"status":    "healthy",
		"uptime":    fmt.Sprintf("%dm%ds", int(uptime.Minutes()), int(uptime.Seconds())%60),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   "Keep-alive ping received",
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		payload["status"] = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	shared.JSON(w, statusCode, payload)
}

// Login forwards credentials upstream as a form post and relays the session
// cookie back to the caller.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	email, password, err := readCredentials(r)
	if err != nil {
		shared.Failure(w, http.StatusBadRequest, "Invalid login request", err.Error())
		return
	}

	slog.Info("Login request received", "email", email)

	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)

	res, err := h.up.Forward(r.Context(), &Request{
		Method:      http.MethodPost,
		Path:        LoginPath,
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte(form.Encode()),
		Cookie:      r.Header.Get("Cookie"),
	})
	if err != nil {
		slog.Error("Login forwarding failed", "error", err)
		shared.Failure(w, http.StatusInternalServerError, "Failed to process login", err.Error())
		return
	}

	slog.Info("Login response", "status", res.StatusCode)
	relay(w, res)
}

// Dashboard forwards the dashboard fetch with the inbound cookie and relays
// the raw body.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.up.Forward(r.Context(), &Request{
		Method: http.MethodGet,
		Path:   DashboardPath,
		Cookie: r.Header.Get("Cookie"),
	})
	if err != nil {
		slog.Error("Dashboard forwarding failed", "error", err)
		shared.Failure(w, http.StatusInternalServerError, "Failed to fetch dashboard", err.Error())
		return
	}

	relay(w, res)
}

// Chat forwards the chat action payload as-is. Actions: list, send, get, hide.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		shared.Failure(w, http.StatusBadRequest, "Invalid chat request", err.Error())
		return
	}

	res, err := h.up.Forward(r.Context(), &Request{
		Method:      http.MethodPost,
		Path:        ChatPath,
		ContentType: "application/json",
		Body:        body,
		Cookie:      r.Header.Get("Cookie"),
	})
	if err != nil {
		slog.Error("Chat forwarding failed", "error", err)
		shared.Failure(w, http.StatusInternalServerError, "Chat request failed", err.Error())
		return
	}

	relay(w, res)
}

// GenerateImage forwards {prompt} with the extended image timeout. A timed
// out generation maps to 504, every other failure to 500.
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.Failure(w, http.StatusBadRequest, "Invalid image request", err.Error())
		return
	}

	slog.Info("Image generation request received", "prompt", req.Prompt)

	body, err := json.Marshal(map[string]string{"prompt": req.Prompt})
	if err != nil {
		shared.Failure(w, http.StatusInternalServerError, "Image generation failed", err.Error())
		return
	}

	res, err := h.up.Forward(r.Context(), &Request{
		Method:      http.MethodPost,
		Path:        ImagePath,
		ContentType: "application/json",
		Body:        body,
		Cookie:      r.Header.Get("Cookie"),
		Timeout:     h.cfg.Timeout.Image,
	})
	if err != nil {
		slog.Error("Image generation failed", "error", err)
		if errors.Is(err, ErrUpstreamTimeout) {
			shared.Failure(w, http.StatusGatewayTimeout,
				"Image generation timed out", "The request took too long to complete")
			return
		}
		shared.Failure(w, http.StatusInternalServerError, "Image generation failed", err.Error())
		return
	}

	slog.Info("Image generation response", "status", res.StatusCode)
	relay(w, res)
}

// NotFound is the catch-all for unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	slog.Info("404 Not Found", "method", r.Method, "path", r.URL.Path)
	shared.Failure(w, http.StatusNotFound, "Not Found",
		fmt.Sprintf("Endpoint %s %s does not exist", r.Method, r.URL.Path))
}

// relay writes a captured upstream response back to the original caller,
// Set-Cookie headers included.
func relay(w http.ResponseWriter, res *Result) {
	for _, c := range res.SetCookies {
		w.Header().Add("Set-Cookie", c)
	}
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	w.WriteHeader(res.StatusCode)
	if _, err := w.Write(res.Body); err != nil {
		slog.Debug("Failed to write relayed body", "error", err)
	}
}

func readCredentials(r *http.Request) (email, password string, err error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var creds struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			return "", "", fmt.Errorf("decode credentials: %w", err)
		}
		return creds.Email, creds.Password, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("parse login form: %w", err)
	}
	return r.PostFormValue("email"), r.PostFormValue("password"), nil
}

func readBody(r *http.Request) ([]byte, error) {
	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	return payload, nil
}
