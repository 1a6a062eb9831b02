package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chi1180/better-hac/internal/shared"
	"github.com/go-chi/chi/v5"
)

// RegisterImageRoutes registers the gallery endpoints.
func (h *Handler) RegisterImageRoutes(r chi.Router) {
	r.Route("/api/images", func(r chi.Router) {
		r.Get("/", h.ListImages)
		r.Delete("/", h.ClearImages)
		r.Get("/latest", h.LatestImage)
		r.Get("/count", h.ImageCount)
		r.Get("/stats", h.StorageStats)
		r.Get("/search", h.SearchImages)
		r.Post("/generate", h.GenerateImage)
		r.Get("/{id}", h.GetImage)
		r.Delete("/{id}", h.DeleteImage)
	})
}

// ListImages returns every stored image, newest first.
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.repo.GetAllImages(r.Context())
	if err != nil {
		slog.Error("Failed to list images", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to load images")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// LatestImage returns the most recent image or null.
func (h *Handler) LatestImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.repo.GetLatestImage(r.Context())
	if err != nil {
		slog.Error("Failed to load latest image", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to load latest image")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]interface{}{"image": img})
}

// ImageCount returns the stored image count.
func (h *Handler) ImageCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.repo.GetImageCount(r.Context())
	if err != nil {
		slog.Error("Failed to count images", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to count images")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]int64{"count": count})
}

// StorageStats returns estimated gallery storage usage.
func (h *Handler) StorageStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.GetStorageStats(r.Context())
	if err != nil {
		slog.Error("Failed to compute storage stats", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to compute storage stats")
		return
	}
	shared.JSON(w, http.StatusOK, stats)
}

// SearchImages matches the q parameter against prompts, case-insensitively.
func (h *Handler) SearchImages(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	images, err := h.repo.SearchByPrompt(r.Context(), term)
	if err != nil {
		slog.Error("Failed to search images", "error", err, "term", term)
		shared.Error(w, http.StatusInternalServerError, "failed to search images")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// GetImage returns one image by id, 404 when unknown.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(w, r)
	if !ok {
		return
	}

	img, err := h.repo.GetImageByID(r.Context(), id)
	if err != nil {
		slog.Error("Failed to load image", "error", err, "id", id)
		shared.Error(w, http.StatusInternalServerError, "failed to load image")
		return
	}
	if img == nil {
		shared.Error(w, http.StatusNotFound, "image not found")
		return
	}
	shared.JSON(w, http.StatusOK, img)
}

// DeleteImage removes one image. Unknown ids succeed quietly.
func (h *Handler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ok := imageID(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteImage(r.Context(), id); err != nil {
		slog.Error("Failed to delete image", "error", err, "id", id)
		shared.Error(w, http.StatusInternalServerError, "failed to delete image")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ClearImages empties the gallery.
func (h *Handler) ClearImages(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.ClearAllImages(r.Context()); err != nil {
		slog.Error("Failed to clear images", "error", err)
		shared.Error(w, http.StatusInternalServerError, "failed to clear images")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// GenerateImage generates through the upstream and saves to the gallery.
// Storage failure is a warning in the body, not a request failure.
func (h *Handler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		shared.Error(w, http.StatusBadRequest, "prompt is required")
		return
	}

	result, err := h.images.Generate(r.Context(), req.Prompt)
	if err != nil {
		slog.Error("Image generation failed", "error", err)
		shared.Error(w, http.StatusBadGateway, err.Error())
		return
	}

	payload := map[string]interface{}{
		"url":    result.URL,
		"stored": result.StoreErr == nil,
	}
	if result.StoreErr != nil {
		payload["store_error"] = result.StoreErr.Error()
	} else {
		payload["id"] = result.ImageID
	}
	shared.JSON(w, http.StatusOK, payload)
}

func imageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid image id")
		return 0, false
	}
	return id, true
}
