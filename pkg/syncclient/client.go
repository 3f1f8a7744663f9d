// Package syncclient is the device-side companion of the notification
// backend: a REST client plus a sync agent that keeps a device's local
// unread state reconciled across pushes, polls and user actions.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Notification is the client-side view of a notification record.
type Notification struct {
	ID          string                 `json:"id"`
	RecipientID uint                   `json:"recipient_id"`
	ActorID     *uint                  `json:"actor_id,omitempty"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Data        map[string]interface{} `json:"data"`
	IsRead      bool                   `json:"is_read"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ListResponse is the body of GET /notifications.
type ListResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         int64          `json:"total"`
	Unread        int64          `json:"unread"`
	Page          int            `json:"page"`
}

// Settings carries a partial settings update; nil fields are left untouched.
type Settings struct {
	NewPost    *bool `json:"newPost,omitempty"`
	NewComment *bool `json:"newComment,omitempty"`
	NewLike    *bool `json:"newLike,omitempty"`
}

// Client calls the notification REST surface. Safe for concurrent use: the
// agent's poll goroutines keep issuing requests while Start and Logout swap
// the auth token.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.RWMutex
	authToken string
}

// NewClient creates a Client. A nil httpClient falls back to
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// SetAuthToken sets the bearer token attached to every request.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// ListNotifications fetches one page of the caller's notifications.
func (c *Client) ListNotifications(ctx context.Context, page, limit int) (*ListResponse, error) {
	var out ListResponse
	path := fmt.Sprintf("/api/v1/notifications?page=%d&limit=%d", page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnreadCount fetches the authoritative unread count.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkRead marks the given notifications as read. An empty ids list marks
// all unread notifications.
func (c *Client) MarkRead(ctx context.Context, ids []string) (int64, error) {
	body := map[string]interface{}{"ids": ids}
	var out struct {
		Affected int64 `json:"affected"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/notifications/mark-read", body, &out); err != nil {
		return 0, err
	}
	return out.Affected, nil
}

// DeleteNotification removes one of the caller's notifications.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/notifications/"+id, nil, nil)
}

// RegisterPushToken registers the device's push token.
func (c *Client) RegisterPushToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/notifications/push-token", map[string]string{"token": token}, nil)
}

// UnregisterPushToken removes the device's push token.
func (c *Client) UnregisterPushToken(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/notifications/push-token", map[string]string{"token": token}, nil)
}

// UpdateSettings merges the present per-category flags.
func (c *Client) UpdateSettings(ctx context.Context, settings Settings) error {
	return c.do(ctx, http.MethodPut, "/api/v1/notifications/settings", settings, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("server returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
