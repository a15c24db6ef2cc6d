// Package apiclient is the HTTP client for the chat persistence API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ai-chat/httpclient"
	"ai-chat/models"
)

const maxBodySize = 5 * 1024 * 1024

type Client struct {
	base *httpclient.BaseClient
}

type CreateChatRequest struct {
	Title *string `json:"title,omitempty"`
}

type CreateMessageRequest struct {
	Content      string      `json:"content"`
	Role         models.Role `json:"role"`
	InputTokens  *int64      `json:"inputTokens,omitempty"`
	OutputTokens *int64      `json:"outputTokens,omitempty"`
	ChatID       string      `json:"chatId,omitempty"`
}

// HTTPError is a non-2xx answer from the API. Message holds the `error`
// field of the body when present.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chat api request failed: status=%d error=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("chat api request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

func New(baseURL string) *Client {
	httpClient := httpclient.New(httpclient.Config{Timeout: 30 * time.Second})
	return NewWithClient(httpClient, baseURL)
}

func NewWithClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{base: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

// CreateChat returns the created chat. The API answers with a one-element
// array.
func (c *Client) CreateChat(ctx context.Context, title *string) (models.Chat, error) {
	var out []models.Chat
	if err := c.do(ctx, http.MethodPost, "/chats/new", CreateChatRequest{Title: title}, &out); err != nil {
		return models.Chat{}, err
	}
	if len(out) == 0 {
		return models.Chat{}, errors.New("chat api returned no chat")
	}
	return out[0], nil
}

func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	out := []models.Chat{}
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	return c.do(ctx, http.MethodDelete, "/chats/"+url.PathEscape(chatID), nil, nil)
}

func (c *Client) CreateMessage(ctx context.Context, in CreateMessageRequest) (models.Message, error) {
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/messages/new", in, &out); err != nil {
		return models.Message{}, err
	}
	return out, nil
}

// Messages returns a chat's messages, newest first.
func (c *Client) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	out := []models.Message{}
	if err := c.do(ctx, http.MethodGet, "/messages/"+url.PathEscape(chatID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, relPath string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := c.base.NewRequest(ctx, method, relPath, nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("chat api response read failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil {
			he.Message = payload.Error
		}
		return he
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
