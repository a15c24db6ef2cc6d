// Package catalog holds the client-side model state: the cached provider
// catalog, the saved-model registry and the selected model.
package catalog

import (
	"context"
	"sync"
	"time"

	"ai-chat/localstore"
	"ai-chat/logger"
)

const (
	CacheKey   = "openrouter_models_cache"
	DefaultTTL = time.Hour
)

type cachedModels struct {
	Models []Model `json:"models"`
	// Timestamp is unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// Result is the outcome of a catalog fetch. An empty Models with a non-empty
// Err means the catalog is unavailable; empty Models with no Err means the
// provider legitimately lists nothing.
type Result struct {
	Models []Model
	Err    string
}

func (r Result) Unavailable() bool { return r.Err != "" }

// Catalog is the TTL cache in front of a ModelLister.
type Catalog struct {
	store  localstore.Storage
	lister ModelLister
	ttl    time.Duration
	now    func() time.Time

	mu sync.Mutex
}

type Option func(*Catalog)

func WithTTL(ttl time.Duration) Option {
	return func(c *Catalog) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

func New(store localstore.Storage, lister ModelLister, opts ...Option) *Catalog {
	c := &Catalog{store: store, lister: lister, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the cached catalog while it is younger than the TTL and
// otherwise asks the provider once. It never returns an error: failures are
// reported in Result.Err with an empty model list.
func (c *Catalog) Fetch(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if models, ok := c.cached(); ok {
		return Result{Models: models}
	}

	models, err := c.lister.ListModels(ctx)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = "Failed to fetch models"
		}
		logger.WarnWithFields("model catalog fetch failed", logger.Fields{"error": msg})
		return Result{Models: []Model{}, Err: msg}
	}

	entry := cachedModels{Models: models, Timestamp: c.now().UnixMilli()}
	if err := localstore.SetJSON(c.store, CacheKey, entry); err != nil {
		logger.Log.Errorf("failed to cache models: %v", err)
	}
	return Result{Models: models}
}

// Invalidate drops the cached catalog so the next Fetch calls the provider.
func (c *Catalog) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RemoveItem(CacheKey)
}

func (c *Catalog) cached() ([]Model, bool) {
	var entry cachedModels
	ok, err := localstore.GetJSON(c.store, CacheKey, &entry)
	if err != nil {
		logger.Log.Errorf("failed to read models cache: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	age := c.now().Sub(time.UnixMilli(entry.Timestamp))
	if age > c.ttl {
		if err := c.store.RemoveItem(CacheKey); err != nil {
			logger.Log.Warnf("failed to drop expired models cache: %v", err)
		}
		return nil, false
	}
	if entry.Models == nil {
		entry.Models = []Model{}
	}
	return entry.Models, true
}
