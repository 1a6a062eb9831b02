package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chi1180/better-hac/internal/shared"
	"github.com/go-chi/chi/v5"
)

// RegisterSessionRoutes registers the session endpoints.
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", h.SessionStatus)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/activity", h.Activity)
		r.Post("/dismiss-warning", h.DismissWarning)
		r.Put("/tab", h.SetTab)
	})
}

// SessionStatus returns the session record, lifecycle state, and user.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	record, err := h.sessions.Record(r.Context())
	if err != nil {
		slog.Error("Failed to read session record", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to read session")
		return
	}

	user, err := h.sessions.GetUser(r.Context())
	if err != nil {
		slog.Error("Failed to read session user", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to read session")
		return
	}

	tab, err := h.sessions.ActiveTab(r.Context())
	if err != nil {
		slog.Error("Failed to read tab preference", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to read session")
		return
	}

	shared.JSON(w, http.StatusOK, map[string]interface{}{
		"state":     h.sessions.State(),
		"record":    record,
		"user":      user,
		"activeTab": tab,
	})
}

// Login authenticates against the upstream and opens the session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if err := h.sessions.Login(r.Context(), req.Email, req.Password); err != nil {
		slog.Warn("Login failed", "email", req.Email, "error", err)
		shared.Error(w, http.StatusUnauthorized, err.Error())
		return
	}

	slog.Info("Login succeeded", "email", req.Email)
	shared.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Logout clears the session record and tab preference.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		slog.Error("Logout failed", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Activity records user interaction reported by the SPA (pointer-down,
// key-down, scroll, touch-start) and clears any idle warning.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Activity(r.Context()); err != nil {
		slog.Error("Failed to record activity", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to record activity")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DismissWarning acknowledges the idle warning.
func (h *Handler) DismissWarning(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.DismissWarning(r.Context()); err != nil {
		slog.Error("Failed to dismiss warning", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to dismiss warning")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SetTab stores the UI tab preference.
func (h *Handler) SetTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab string `json:"tab"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Tab == "" {
		shared.Error(w, http.StatusBadRequest, "tab is required")
		return
	}

	if err := h.sessions.SetActiveTab(r.Context(), req.Tab); err != nil {
		slog.Error("Failed to store tab preference", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to store tab preference")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
