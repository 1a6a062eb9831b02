// Package image generates images through the upstream API and persists them
// in the local gallery store.
package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chi1180/better-hac/internal/proxy"
)

// Client calls the upstream image-generation endpoint. Generation is slow,
// so every call runs under the extended timeout.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewClient creates an image client. httpClient carries the session cookie
// jar; pass nil for a plain client.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		timeout: timeout,
	}
}

type generateResponse struct {
	URL     string `json:"url"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Generate requests an image for the prompt and returns its URL. Fails
// closed on timeout; nothing is retried.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+proxy.ImagePath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("image generation request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read image response: %w", err)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}

	if resp.StatusCode >= 400 {
		detail := decoded.Message
		if detail == "" {
			detail = decoded.Error
		}
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("image generation failed: %s", detail)
	}
	if decoded.URL == "" {
		return "", fmt.Errorf("image generation returned no url")
	}

	return decoded.URL, nil
}
