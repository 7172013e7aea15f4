package permcache

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

const evictChunkSize = 128

// Evictor is the cache surface the coordinator needs.
type Evictor interface {
	Evict(ctx context.Context, userIDs []string) error
}

// Coordinator fans cache eviction out over the affected user set and joins
// on completion. A mutation that cannot complete its invalidation must fail:
// serving stale permissions is worse than reporting a failed write, so
// errors here propagate to the triggering operation.
type Coordinator struct {
	cache Evictor
}

// NewCoordinator builds a Coordinator over the given cache.
func NewCoordinator(cache Evictor) *Coordinator {
	return &Coordinator{cache: cache}
}

// InvalidateUsers evicts every listed user's cached permission state. Input
// is deduplicated so each user lands in exactly one eviction call. Eviction
// runs in parallel per chunk; the call returns only once every chunk has
// completed.
func (c *Coordinator) InvalidateUsers(ctx context.Context, userIDs []string) error {
	unique := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		unique[id] = struct{}{}
	}
	if len(unique) == 0 {
		return nil
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(ids); start += evictChunkSize {
		end := start + evictChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		g.Go(func() error {
			return c.cache.Evict(ctx, chunk)
		})
	}
	return g.Wait()
}
