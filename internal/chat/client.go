// Package chat provides a typed client for the upstream chat API. Threads
// and messages live entirely upstream; nothing here is persisted locally.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chi1180/better-hac/internal/domain"
	"github.com/chi1180/better-hac/internal/proxy"
)

// Client calls the chat endpoint with a shared cookie-carrying HTTP client.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a chat client. httpClient carries the session cookie
// jar; pass nil for a plain client with the given timeout.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

type request struct {
	Action   string `json:"action"`
	Message  string `json:"message,omitempty"`
	ThreadID string `json:"thread_id,omitempty"`
}

type response struct {
	Threads      []domain.Thread  `json:"threads,omitempty"`
	LastThreadID string           `json:"last_thread_id,omitempty"`
	Reply        string           `json:"reply,omitempty"`
	ThreadID     string           `json:"thread_id,omitempty"`
	CtxCount     int              `json:"ctx_count,omitempty"`
	Messages     []domain.Message `json:"messages,omitempty"`
	OK           bool             `json:"ok,omitempty"`
	Error        string           `json:"error,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// ThreadList is the result of a list action.
type ThreadList struct {
	Threads      []domain.Thread
	LastThreadID string
}

// SendResult is the result of a send action.
type SendResult struct {
	Reply    string
	ThreadID string
	CtxCount int
	Messages []domain.Message
}

// ThreadDetail is the result of a get action.
type ThreadDetail struct {
	ThreadID string
	Messages []domain.Message
}

// ListThreads fetches the thread summaries.
func (c *Client) ListThreads(ctx context.Context) (*ThreadList, error) {
	resp, err := c.do(ctx, &request{Action: "list"})
	if err != nil {
		return nil, err
	}
	return &ThreadList{Threads: resp.Threads, LastThreadID: resp.LastThreadID}, nil
}

// SendMessage sends a message, creating a new thread when threadID is empty.
func (c *Client) SendMessage(ctx context.Context, message, threadID string) (*SendResult, error) {
	resp, err := c.do(ctx, &request{Action: "send", Message: message, ThreadID: threadID})
	if err != nil {
		return nil, err
	}
	return &SendResult{
		Reply:    resp.Reply,
		ThreadID: resp.ThreadID,
		CtxCount: resp.CtxCount,
		Messages: resp.Messages,
	}, nil
}

// GetThread fetches the full conversation for a thread.
func (c *Client) GetThread(ctx context.Context, threadID string) (*ThreadDetail, error) {
	resp, err := c.do(ctx, &request{Action: "get", ThreadID: threadID})
	if err != nil {
		return nil, err
	}
	return &ThreadDetail{ThreadID: resp.ThreadID, Messages: resp.Messages}, nil
}

// HideThread hides a thread from the upstream listing.
func (c *Client) HideThread(ctx context.Context, threadID string) error {
	resp, err := c.do(ctx, &request{Action: "hide", ThreadID: threadID})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("hide thread %s: upstream declined", threadID)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *request) (*response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+proxy.ChatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat %s request failed: %w", req.Action, err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		detail := resp.Error
		if detail == "" {
			detail = resp.Message
		}
		if detail == "" {
			detail = fmt.Sprintf("status %d", httpResp.StatusCode)
		}
		return nil, fmt.Errorf("chat %s failed: %s", req.Action, detail)
	}

	return &resp, nil
}
