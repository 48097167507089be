package pushgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client talks to the remote push gateway: device registration and
// server-initiated sends.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured returns true if the client has a gateway URL.
func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

type registerRequest struct {
	DeviceID string `json:"device_id"`
	Platform string `json:"platform"`
}

type registerResponse struct {
	Token string `json:"token"`
}

// RegisterDevice exchanges a device id for a push token.
func (c *Client) RegisterDevice(ctx context.Context, deviceID, platformName string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("push gateway not configured")
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/v1/devices", registerRequest{
		DeviceID: deviceID,
		Platform: platformName,
	})
	if err != nil {
		return "", err
	}

	var resp registerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode register response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("gateway returned empty token")
	}
	return resp.Token, nil
}

type sendRequest struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

type sendReceipt struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type sendResponse struct {
	Data []sendReceipt `json:"data"`
}

// Send pushes a message to one token. Any non-success receipt or
// malformed response is a boolean failure, never an error: there is no
// retry or backoff here.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) bool {
	if !c.IsConfigured() || token == "" {
		return false
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, "/v1/push", sendRequest{
		To:    token,
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		log.Printf("Push send failed: %v", err)
		return false
	}

	var resp sendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		log.Printf("Malformed push response: %v", err)
		return false
	}
	if len(resp.Data) == 0 {
		return false
	}
	for _, receipt := range resp.Data {
		if receipt.Status != "ok" {
			log.Printf("Push rejected: %s %s", receipt.Status, receipt.Message)
			return false
		}
	}
	return true
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
