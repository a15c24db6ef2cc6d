package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"ai-chat/httpclient"
)

// ModelLister fetches the provider's model list.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}

type modelListResponse struct {
	Data []Model `json:"data"`
}

// OpenRouterLister calls GET {baseURL}/models.
type OpenRouterLister struct {
	client *httpclient.BaseClient
}

// NewOpenRouterLister builds a lister; apiKey is optional for the public
// model list.
func NewOpenRouterLister(baseURL, apiKey string) *OpenRouterLister {
	httpClient := httpclient.New(httpclient.Config{Header: httpclient.BearerHeader(apiKey)})
	return &OpenRouterLister{client: httpclient.NewBaseClientWithClient(httpClient, baseURL)}
}

func (l *OpenRouterLister) ListModels(ctx context.Context) ([]Model, error) {
	req, err := l.client.NewRequest(ctx, http.MethodGet, "/models", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create models request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("models request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}
	if payload.Data == nil {
		payload.Data = []Model{}
	}

	sort.Slice(payload.Data, func(i, j int) bool {
		return payload.Data[i].ID < payload.Data[j].ID
	})
	return payload.Data, nil
}
