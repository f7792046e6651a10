// Package fetch wraps read requests in one of three caching strategies,
// coordinating an in-memory request cache with the persistent store so read
// paths keep working offline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"parcelhub-sync-agent/internal/cache"
	"parcelhub-sync-agent/internal/model"
	"parcelhub-sync-agent/internal/store"
)

// FetchError is a sentinel error type for fetch failures.
type FetchError string

func (e FetchError) Error() string { return string(e) }

// ErrNetworkUnreachable indicates a connectivity-class transport failure.
// Triggers fallback to the cached copy where one exists.
const ErrNetworkUnreachable FetchError = "network unreachable"

// Class is a resource class. Each class gets its own cache namespace so a
// deployment can invalidate exactly the classes that changed.
type Class string

const (
	ClassAPI    Class = "api"
	ClassStatic Class = "static"
	ClassPages  Class = "pages"
)

// offlineFallbackPage is returned for page navigations with no cached copy
// while offline.
var offlineFallbackPage = []byte(`{"offline":true,"message":"You are offline. Cached data will be shown where available."}`)

// Config holds fetch client dependencies and settings.
type Config struct {
	Store    store.Store
	Requests cache.Cache

	// TTL for persistent cache entries. Default: 24h.
	TTL time.Duration

	// RequestTTL for the in-memory request cache. Default: 30s.
	RequestTTL time.Duration

	Client *http.Client
}

// Client executes reads through a chosen caching strategy.
type Client struct {
	store  store.Store
	req    cache.Cache
	ttl    time.Duration
	reqTTL time.Duration
	http   *http.Client
}

// New creates a fetch client.
func New(cfg Config) *Client {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.RequestTTL == 0 {
		cfg.RequestTTL = 30 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		store:  cfg.Store,
		req:    cfg.Requests,
		ttl:    cfg.TTL,
		reqTTL: cfg.RequestTTL,
		http:   cfg.Client,
	}
}

func cacheKey(class Class, url string) string {
	return string(class) + ":" + url
}

// NetworkFirst tries the network, caches the response on success, and falls
// back to the cached copy on connectivity failure. Used for API endpoints.
func (c *Client) NetworkFirst(ctx context.Context, class Class, url string) ([]byte, error) {
	data, err := c.fetchAndCache(ctx, class, url)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNetworkUnreachable) {
		return nil, err
	}

	cached, cerr := c.cached(ctx, class, url)
	if cerr == nil {
		log.Printf("[Fetch] network-first falling back to cache for %s", url)
		return cached, nil
	}
	return nil, err
}

// Navigate is NetworkFirst for page navigations: with no cached copy it
// returns a generic offline fallback instead of an error.
func (c *Client) Navigate(ctx context.Context, url string) ([]byte, error) {
	data, err := c.NetworkFirst(ctx, ClassPages, url)
	if err != nil && errors.Is(err, ErrNetworkUnreachable) {
		return offlineFallbackPage, nil
	}
	return data, err
}

// CacheFirst returns the cached copy when present and only fetches on a
// miss. Used for static assets.
func (c *Client) CacheFirst(ctx context.Context, class Class, url string) ([]byte, error) {
	if cached, err := c.cached(ctx, class, url); err == nil {
		return cached, nil
	}
	return c.fetchAndCache(ctx, class, url)
}

// StaleWhileRevalidate returns the cached copy immediately while refreshing
// the cache in the background for next time. With no cached copy it waits on
// the network. Used for page/shell content.
func (c *Client) StaleWhileRevalidate(ctx context.Context, class Class, url string) ([]byte, error) {
	cached, err := c.cached(ctx, class, url)
	if err != nil {
		return c.fetchAndCache(ctx, class, url)
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := c.fetchAndCache(bg, class, url); err != nil {
			log.Printf("[Fetch] revalidate failed for %s: %v", url, err)
		}
	}()

	return cached, nil
}

// PreWarm populates the cache for an explicit URL list (the CACHE_URLS
// message from the background worker).
func (c *Client) PreWarm(ctx context.Context, class Class, urls []string) {
	for _, url := range urls {
		if _, err := c.CacheFirst(ctx, class, url); err != nil {
			log.Printf("[Fetch] pre-warm failed for %s: %v", url, err)
		}
	}
}

// cached checks the in-memory request cache first, then the persistent
// store. A store hit is promoted back into the request cache.
func (c *Client) cached(ctx context.Context, class Class, url string) ([]byte, error) {
	key := cacheKey(class, url)

	if c.req != nil {
		if data, err := c.req.Get(ctx, key); err == nil {
			return data, nil
		}
	}

	entry, err := c.store.GetCache(ctx, key)
	if err != nil {
		return nil, err
	}
	if c.req != nil {
		if err := c.req.Set(ctx, key, entry.Data, c.reqTTL); err != nil {
			log.Printf("[Fetch] request cache set failed: %v", err)
		}
	}
	return entry.Data, nil
}

// fetchAndCache performs the network request and writes both cache layers on
// success. Storage failures are logged, not propagated: the response is
// still served.
func (c *Client) fetchAndCache(ctx context.Context, class Class, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	key := cacheKey(class, url)
	now := time.Now().UTC()
	entry := model.CachedEntry{
		Key:       key,
		Data:      data,
		StoredAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}
	if err := c.store.PutCache(ctx, entry); err != nil {
		log.Printf("[Fetch] cache write failed for %s: %v", key, err)
	}
	if c.req != nil {
		if err := c.req.Set(ctx, key, data, c.reqTTL); err != nil {
			log.Printf("[Fetch] request cache set failed: %v", err)
		}
	}
	return data, nil
}
