package nexon

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/okian/expwatch/internal/domain/model"
	"github.com/okian/expwatch/pkg/metrics"
)

// Resolver maps a character name to its upstream identifier.
type Resolver interface {
	Resolve(ctx context.Context, name string) (model.Identifier, error)
}

// CachingResolver remembers successful resolutions for a bounded time.
// Failures are never cached.
type CachingResolver struct {
	next  Resolver
	cache *lru.LRU[string, model.Identifier]
}

// NewCachingResolver wraps next with an LRU of size entries that expire
// after ttl. A non-positive ttl keeps entries until evicted.
func NewCachingResolver(next Resolver, size int, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: lru.NewLRU[string, model.Identifier](size, nil, ttl),
	}
}

// Resolve returns the cached identifier or asks the wrapped resolver.
func (r *CachingResolver) Resolve(ctx context.Context, name string) (model.Identifier, error) {
	if id, ok := r.cache.Get(name); ok {
		metrics.RecordResolverCache(true)
		return id, nil
	}
	metrics.RecordResolverCache(false)

	id, err := r.next.Resolve(ctx, name)
	if err != nil {
		return "", err
	}
	r.cache.Add(name, id)
	return id, nil
}

// Forget drops name from the cache, e.g. after its identifier stopped working.
func (r *CachingResolver) Forget(name string) {
	r.cache.Remove(name)
}

// Len reports the number of cached names.
func (r *CachingResolver) Len() int {
	return r.cache.Len()
}
