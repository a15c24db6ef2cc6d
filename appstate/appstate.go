// Package appstate wires the client-side components of the terminal chat.
// A State is built once at startup and closed on shutdown; nothing in it is
// a package-level singleton.
package appstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ai-chat/apiclient"
	"ai-chat/catalog"
	"ai-chat/chat"
	"ai-chat/config"
	"ai-chat/history"
	"ai-chat/httpclient"
	"ai-chat/llm"
	"ai-chat/localstore"
)

// APIKeyKey stores the user-supplied OpenRouter key that overrides the
// environment.
const APIKeyKey = "openrouter_api_key"

type State struct {
	Storage   localstore.Storage
	Catalog   *catalog.Catalog
	Saved     *catalog.Saved
	Selection *catalog.Selection
	API       *apiclient.Client
	History   *history.Store
	Session   *chat.Session

	envKey        string
	openRouterURL string

	closeOnce sync.Once
}

// New builds the state from configuration. storage may be nil, in which
// case a FileStorage under cfg.Client.DataDir is used.
func New(cfg config.AppConfig, storage localstore.Storage, notifier chat.Notifier) (*State, error) {
	if storage == nil {
		fs, err := localstore.NewFileStorage(cfg.Client.DataDir)
		if err != nil {
			return nil, err
		}
		storage = fs
	}

	s := &State{
		Storage:       storage,
		envKey:        strings.TrimSpace(cfg.Provider.OpenRouterAPIKey),
		openRouterURL: cfg.Provider.OpenRouterURL,
	}

	s.Catalog = catalog.New(storage, &keyedLister{state: s}, catalog.WithTTL(cfg.Client.CatalogTTL))
	s.Saved = catalog.NewSaved(storage)
	s.Selection = catalog.NewSelection(storage)
	s.API = apiclient.New(cfg.Client.APIBaseURL)
	s.History = history.NewStore(s.API)

	var provider llm.Provider
	switch cfg.Client.Transport {
	case "remote":
		provider = llm.NewRemoteProvider(cfg.Client.APIBaseURL, nil)
	case "openrouter":
		provider = &keyedProvider{state: s}
	default:
		return nil, fmt.Errorf("unknown client transport %q", cfg.Client.Transport)
	}

	s.Session = chat.NewSession(chat.Config{
		Provider:     provider,
		Models:       s.Selection,
		Persister:    s.History,
		Notifier:     notifier,
		Instructions: cfg.Client.Instructions,
	})
	return s, nil
}

// APIKey returns the stored override, or the environment key.
func (s *State) APIKey() string {
	if v, ok, err := s.Storage.GetItem(APIKeyKey); err == nil && ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return s.envKey
}

func (s *State) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("api key is empty")
	}
	return s.Storage.SetItem(APIKeyKey, key)
}

// ClearAPIKey drops the override so the environment key applies again.
func (s *State) ClearAPIKey() error {
	return s.Storage.RemoveItem(APIKeyKey)
}

// Close stops the session and waits for pending saves.
func (s *State) Close() {
	s.closeOnce.Do(func() {
		if s.Session != nil {
			s.Session.Close()
		}
	})
}

// keyedProvider builds the OpenRouter provider for the key in effect at
// each turn, so a changed override applies without a restart.
type keyedProvider struct {
	state *State

	mu       sync.Mutex
	key      string
	provider *llm.OpenRouterProvider
}

func (p *keyedProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	key := p.state.APIKey()
	if key == "" {
		return nil, errors.New("OpenRouter API key is missing")
	}

	p.mu.Lock()
	if p.provider == nil || p.key != key {
		provider, err := llm.NewOpenRouterProvider(llm.OpenRouterConfig{
			APIKey:     key,
			BaseURL:    p.state.openRouterURL,
			HTTPClient: httpclient.New(httpclient.Config{Streaming: true}),
			Title:      "ai-chat",
		})
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.provider, p.key = provider, key
	}
	provider := p.provider
	p.mu.Unlock()

	return provider.Stream(ctx, req)
}

type keyedLister struct {
	state *State
}

func (l *keyedLister) ListModels(ctx context.Context) ([]catalog.Model, error) {
	return catalog.NewOpenRouterLister(l.state.openRouterURL, l.state.APIKey()).ListModels(ctx)
}
