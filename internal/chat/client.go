// Package chat speaks the backend's non-streaming chat protocol: one POST
// with the full message sequence, one assistant message back.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Message is one entry of the wire-format sequence sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Misconfiguration errors, checked before any network call.
var (
	ErrEmptyMessages       = errors.New("chat: messages is empty or unspecified")
	ErrModelUnspecified    = errors.New("chat: model is unspecified")
	ErrEndpointUnspecified = errors.New("chat: url is unspecified")
)

// UpstreamError is any failure reported by or en route to the chat backend:
// transport errors, non-2xx statuses, and response bodies without a string
// message.content. The content is opaque; callers only log it.
type UpstreamError struct {
	Status int // 0 when the request never completed
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chat: upstream status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("chat: upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatResponse struct {
	Message struct {
		Content *string `json:"content"`
	} `json:"message"`
}

type Client struct {
	url    string
	client *http.Client
}

func NewClient(url string) *Client {
	return &Client{url: url, client: &http.Client{}}
}

// Invoke performs one chat call and returns the assistant reply text. The
// sequence is sent as-is: context-window overflow is the backend's error to
// report, not trimmed here. Retries, if any, are the caller's policy.
func (c *Client) Invoke(ctx context.Context, model string, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyMessages
	}
	if model == "" {
		return "", ErrModelUnspecified
	}
	if c.url == "" {
		return "", ErrEndpointUnspecified
	}

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("chat: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("%s", bytes.TrimSpace(b))}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &UpstreamError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Message.Content == nil {
		return "", &UpstreamError{Status: resp.StatusCode, Err: errors.New("response has no message.content")}
	}
	return *parsed.Message.Content, nil
}
