// Package cache provides the short code to destination caches placed in front
// of the link store on the redirect path.
package cache

import (
	"context"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps resolutions in process. Entries expire after ttl, which
// bounds how long a tombstoned link can keep resolving on other replicas.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, cleanupInterval)}
}

func (m *MemoryCache) Get(_ context.Context, shortCode string) (*entity.RedirectTarget, error) {
	v, ok := m.c.Get(shortCode)
	if !ok {
		return nil, nil
	}

	target := v.(entity.RedirectTarget)
	return &target, nil
}

func (m *MemoryCache) Set(_ context.Context, shortCode string, target *entity.RedirectTarget) error {
	m.c.Set(shortCode, *target, gocache.DefaultExpiration)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, shortCode string) error {
	m.c.Delete(shortCode)
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}
