package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// SuggestCache is a TTL cache of suggestion lists keyed by word, in front of
// a Suggester. Failed lookups are not cached.
type SuggestCache struct {
	next  Suggester
	cache *ttlcache.Cache[string, []string]
}

// NewSuggestCache wraps next with a cache whose entries live for ttl.
func NewSuggestCache(next Suggester, ttl time.Duration) *SuggestCache {
	c := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](ttl),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	go c.Start()
	return &SuggestCache{next: next, cache: c}
}

// Suggest returns the cached list for word, fetching it on a miss.
func (sc *SuggestCache) Suggest(ctx context.Context, word string) ([]string, error) {
	if item := sc.cache.Get(word); item != nil {
		slog.Debug("suggestion cache hit", "word", word)
		return item.Value(), nil
	}
	list, err := sc.next.Suggest(ctx, word)
	if err != nil {
		return nil, err
	}
	sc.cache.Set(word, list, ttlcache.DefaultTTL)
	return list, nil
}

// Forget drops cached lists for words, e.g. after a correction was learned.
func (sc *SuggestCache) Forget(words ...string) {
	for _, w := range words {
		sc.cache.Delete(w)
	}
}

// Close stops the cache expiration loop.
func (sc *SuggestCache) Close() {
	sc.cache.Stop()
}
