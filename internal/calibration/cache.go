package calibration

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/onco-efficacy-engine/internal/domain"
)

const (
	defaultCacheSize = 2048
	defaultCacheTTL  = 10 * time.Minute
)

// Cache fronts a snapshot Store with a bounded, time-expiring in-process
// cache. Entries are inserted whole on a store hit and never partially
// updated; misses are not cached so a snapshot published mid-flight becomes
// visible within one TTL.
type Cache struct {
	store Store
	lru   *expirable.LRU[string, *Snapshot]
	log   *logrus.Logger
}

// NewCache creates a snapshot cache over the given store. A zero ttl or size
// falls back to the defaults (10 minute TTL, 2048 genes).
func NewCache(store Store, size int, ttl time.Duration, logger *logrus.Logger) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		store: store,
		lru:   expirable.NewLRU[string, *Snapshot](size, nil, ttl),
		log:   logger,
	}
}

// Lookup returns the calibration snapshot for a gene, or false when none
// exists. Store errors degrade to a miss: the caller falls back to the
// uncalibrated percentile and the request proceeds.
func (c *Cache) Lookup(ctx context.Context, gene string) (*Snapshot, bool) {
	if snapshot, ok := c.lru.Get(gene); ok {
		return snapshot, true
	}

	snapshot, err := c.store.Get(ctx, gene)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.log.WithError(err).WithField("gene", gene).Warn("Calibration store lookup failed, falling back to global calibration")
		}
		return nil, false
	}

	c.lru.Add(gene, snapshot)
	return snapshot, true
}

// Purge drops all cached snapshots. Used after offline rebuilds.
func (c *Cache) Purge() {
	c.lru.Purge()
}
