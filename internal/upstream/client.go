// Package upstream talks to the Pulse backend — the external message store
// and employee directory this gateway aggregates over. The gateway never
// persists anything itself; every call here is scoped by the end user's
// bearer token, which the upstream uses to resolve inbox/sent/company.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsehq/comms-gateway/internal/domain"
)

// Error is a non-2xx response from the upstream API
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Body)
}

// Client is a thin wrapper around the Pulse REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an upstream client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// doRequest executes one authenticated request and returns the raw body.
// token is the end user's bearer token, forwarded unchanged.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{Status: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// GetInbox fetches the caller's received messages, newest first
func (c *Client) GetInbox(ctx context.Context, token string, limit int) ([]domain.Message, error) {
	path := fmt.Sprintf("/api/messaging/inbox?limit=%d", limit)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	if err := json.Unmarshal(respBody, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse inbox: %w", err)
	}
	return messages, nil
}

// GetSentMessages fetches the caller's sent messages, newest first
func (c *Client) GetSentMessages(ctx context.Context, token string, limit int) ([]domain.Message, error) {
	path := fmt.Sprintf("/api/messaging/sent?limit=%d", limit)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	if err := json.Unmarshal(respBody, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse sent messages: %w", err)
	}
	return messages, nil
}

// SendMessage creates a message on the upstream store. The created message
// only becomes visible in inbox/sent on a later fetch.
func (c *Client) SendMessage(ctx context.Context, token string, req *domain.SendMessageRequest) (*domain.Message, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/api/messaging/send", token, req)
	if err != nil {
		return nil, err
	}

	var msg domain.Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse sent message: %w", err)
	}
	return &msg, nil
}

// MarkMessageAsRead commits a read receipt for one message
func (c *Client) MarkMessageAsRead(ctx context.Context, token string, messageID string) error {
	path := fmt.Sprintf("/api/messaging/%s/read", messageID)
	_, err := c.doRequest(ctx, http.MethodPatch, path, token, nil)
	return err
}

// GetUnreadCount fetches the server-side unread counter
func (c *Client) GetUnreadCount(ctx context.Context, token string) (int, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/api/messaging/unread-count", token, nil)
	if err != nil {
		return 0, err
	}

	var resp domain.UnreadCountResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse unread count: %w", err)
	}
	return resp.UnreadCount, nil
}

// GetEmployees fetches the employee directory for name resolution
func (c *Client) GetEmployees(ctx context.Context, token string, limit int) ([]domain.Employee, error) {
	path := fmt.Sprintf("/api/employees?limit=%d", limit)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var resp domain.EmployeeListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse employees: %w", err)
	}
	return resp.Employees, nil
}
