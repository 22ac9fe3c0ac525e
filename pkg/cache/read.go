package cache

import (
	"github.com/ajitpratap0/quasar/pkg/metrics"
)

// readThrough returns the cached value for key, or loads, stores and
// returns it. Load failures are returned as they are and not stored. A
// cached value of the wrong type counts as a miss and is replaced.
func readThrough[T any](c Cache, accessor, key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			metrics.CacheRequests.WithLabelValues(accessor, metrics.ResultHit).Inc()
			return typed, nil
		}
	}
	metrics.CacheRequests.WithLabelValues(accessor, metrics.ResultMiss).Inc()
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Put(key, v)
	return v, nil
}
