package api

import (
	"log/slog"
	"net/http"

	"github.com/chi1180/better-hac/internal/shared"
	"github.com/go-chi/chi/v5"
)

// RegisterChatRoutes registers the typed chat endpoints. Threads live
// upstream; every call goes out through the session's cookie-carrying
// client.
func (h *Handler) RegisterChatRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/threads", h.ListThreads)
		r.Get("/threads/{id}", h.GetThread)
		r.Delete("/threads/{id}", h.HideThread)
		r.Post("/messages", h.SendMessage)
	})
}

// ListThreads returns the upstream thread summaries.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	list, err := h.chats.ListThreads(r.Context())
	if err != nil {
		slog.Error("Failed to list chat threads", "error", err)
		shared.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	shared.JSON(w, http.StatusOK, map[string]interface{}{
		"threads":      list.Threads,
		"lastThreadId": list.LastThreadID,
	})
}

// GetThread returns the full conversation for one thread.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := h.chats.GetThread(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load chat thread", "error", err, "thread_id", id)
		shared.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	shared.JSON(w, http.StatusOK, map[string]interface{}{
		"threadId": detail.ThreadID,
		"messages": detail.Messages,
	})
}

// SendMessage sends a message, starting a new thread when threadId is empty.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message  string `json:"message"`
		ThreadID string `json:"threadId"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		shared.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.chats.SendMessage(r.Context(), req.Message, req.ThreadID)
	if err != nil {
		slog.Error("Failed to send chat message", "error", err)
		shared.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	shared.JSON(w, http.StatusOK, map[string]interface{}{
		"reply":    result.Reply,
		"threadId": result.ThreadID,
		"ctxCount": result.CtxCount,
		"messages": result.Messages,
	})
}

// HideThread hides a thread from the upstream listing.
func (h *Handler) HideThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.chats.HideThread(r.Context(), id); err != nil {
		slog.Error("Failed to hide chat thread", "error", err, "thread_id", id)
		shared.Error(w, http.StatusBadGateway, err.Error())
		return
	}
	shared.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
