package enrichment

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/streamr/backend/internal/metrics"
)

// CachingTitles wraps a TitleSource with a bounded TTL cache. Concurrent
// lookups for the same id share one upstream call.
type CachingTitles struct {
	base  TitleSource
	cache *lru.LRU[string, TitleDetails]
	group singleflight.Group
}

// NewCachingTitles returns a TitleSource that caches up to size records for ttl.
func NewCachingTitles(base TitleSource, size int, ttl time.Duration) *CachingTitles {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingTitles{
		base:  base,
		cache: lru.NewLRU[string, TitleDetails](size, nil, ttl),
	}
}

// Title returns cached details when available, otherwise it delegates to the
// underlying source and stores successful results.
func (c *CachingTitles) Title(ctx context.Context, imdbID string) (TitleDetails, error) {
	if c == nil || c.base == nil {
		return TitleDetails{}, ErrProviderUnavailable
	}

	if details, ok := c.cache.Get(imdbID); ok {
		metrics.OMDbCacheLookups.WithLabelValues("hit").Inc()
		return details, nil
	}
	metrics.OMDbCacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(imdbID, func() (any, error) {
		details, err := c.base.Title(ctx, imdbID)
		if err != nil {
			return TitleDetails{}, err
		}
		c.cache.Add(imdbID, details)
		return details, nil
	})
	if err != nil {
		return TitleDetails{}, err
	}
	return v.(TitleDetails), nil
}
