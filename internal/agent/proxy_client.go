package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const agentPath = "/api/ai/agent"

// ProxyRequest is the body accepted by the agent proxy endpoint.
type ProxyRequest struct {
	Prompt string `json:"prompt"`
}

// ProxyResponse is the success body of the agent proxy endpoint.
type ProxyResponse struct {
	Text string `json:"text"`
}

// ProxyError is the failure body of the agent proxy endpoint.
type ProxyError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ProxyClient talks to an agent proxy over HTTP.
type ProxyClient struct {
	baseURL string
	client  *http.Client
}

func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	return NewProxyClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

func NewProxyClientWithHTTP(baseURL string, client *http.Client) *ProxyClient {
	return &ProxyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *ProxyClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ProxyRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+agentPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", proxyFailure(resp)
	}

	var out ProxyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode agent reply: %w", ErrTransport, err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrEmptyReply
	}
	return out.Text, nil
}

// proxyFailure prefers the details message over the short error title.
func proxyFailure(resp *http.Response) error {
	var body ProxyError
	msg := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		switch {
		case body.Details != "":
			msg = body.Details
		case body.Error != "":
			msg = body.Error
		}
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = ErrUpstreamAuth
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "api key"):
		kind = ErrUpstreamAuth
	default:
		kind = ErrTransport
	}
	return fmt.Errorf("%w: %s", kind, msg)
}
