package query

import (
	"hash/fnv"

	"github.com/emberql/emberql/pkg/cache"
)

// planCache memoizes parsed+planned MATCH queries by fingerprint, reusing
// the general-purpose LRU (pkg/cache.QueryCache) rather than
// hand-rolling a second one. No TTL: a plan only goes stale if the schema
// the planner reasons about changes shape, which this store never does at
// runtime, so LRU-only eviction is sufficient.
type planCache struct {
	c *cache.QueryCache
}

func newPlanCache(size int) *planCache {
	return &planCache{c: cache.NewQueryCache(size, 0)}
}

func (pc *planCache) key(fp string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(fp))
	return h.Sum64()
}

func (pc *planCache) get(fp string) (plan, bool) {
	v, ok := pc.c.Get(pc.key(fp))
	if !ok {
		return plan{}, false
	}
	p, ok := v.(plan)
	return p, ok
}

func (pc *planCache) put(fp string, p plan) {
	pc.c.Put(pc.key(fp), p)
}

// defaultCacheSize mirrors NewQueryCache's default of 1000 entries.
const defaultCacheSize = 1000
