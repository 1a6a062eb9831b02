// Package api provides HTTP handlers for the Better HAC local API.
//
//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"github.com/chi1180/better-hac/internal/chat"
	"github.com/chi1180/better-hac/internal/image"
	"github.com/chi1180/better-hac/internal/session"
	"github.com/chi1180/better-hac/internal/store"
)

// Handler provides common handler utilities for the local API surface.
type Handler struct {
	repo     store.Repository
	sessions *session.Service
	monitor  *session.Monitor
	images   *image.Service
	chats    *chat.Client
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, sessions *session.Service, monitor *session.Monitor, images *image.Service, chats *chat.Client) *Handler {
	return &Handler{
		repo:     repo,
		sessions: sessions,
		monitor:  monitor,
		images:   images,
		chats:    chats,
	}
}
