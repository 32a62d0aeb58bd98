package nominatim

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type cacheEntry struct {
	places   []Place
	cachedAt time.Time
}

type cachedClient struct {
	Client
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedClient wraps inner so repeated searches for the same address are
// answered locally for ttl. Empty results are cached too. Reverse lookups
// pass through.
func NewCachedClient(inner Client, ttl time.Duration) Client {
	return &cachedClient{
		Client:  inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// cacheKey returns SHA-256 hex of the whitespace- and case-normalized query.
func cacheKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

func (c *cachedClient) Search(ctx context.Context, query string) ([]Place, error) {
	key := cacheKey(query)
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && now.Sub(e.cachedAt) < c.ttl {
		c.mu.Unlock()
		zap.L().Debug("nominatim: cache hit", zap.String("key", key[:12]), zap.Int("places", len(e.places)))
		return append([]Place(nil), e.places...), nil
	}
	c.mu.Unlock()

	places, err := c.Client.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{places: append([]Place(nil), places...), cachedAt: now}
	c.mu.Unlock()
	return places, nil
}
