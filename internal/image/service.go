package image

import (
	"context"
	"log/slog"

	"github.com/chi1180/better-hac/internal/store"
)

// Service combines generation with gallery persistence. Generation success
// and storage failure are distinct outcomes: a generated image whose save
// fails is still reported to the caller.
type Service struct {
	client *Client
	repo   store.Repository
}

// NewService creates the image service.
func NewService(client *Client, repo store.Repository) *Service {
	return &Service{client: client, repo: repo}
}

// GenerateResult reports one generation attempt. StoreErr is non-nil when
// the image was generated but could not be persisted.
type GenerateResult struct {
	URL      string
	ImageID  int64
	StoreErr error
}

// Generate produces an image for the prompt and saves it to the gallery.
// A generation failure returns an error; a storage failure is carried in
// the result instead.
func (s *Service) Generate(ctx context.Context, prompt string) (*GenerateResult, error) {
	url, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	result := &GenerateResult{URL: url}

	id, err := s.repo.SaveImage(ctx, prompt, url)
	if err != nil {
		slog.Warn("Image generated but could not be saved", "error", err)
		result.StoreErr = err
		return result, nil
	}

	result.ImageID = id
	slog.Info("Image generated and saved", "image_id", id)
	return result, nil
}
