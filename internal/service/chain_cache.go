package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"edurag/internal/contextutil"
	"edurag/internal/llm"
	"edurag/internal/rag"
)

// Answerer answers questions over one collection with one backend.
type Answerer interface {
	Answer(ctx context.Context, question string) (rag.Answer, error)
}

// ChainKey identifies a cached answering chain.
type ChainKey struct {
	Collection string
	Backend    llm.Backend
}

func (k ChainKey) String() string {
	return k.Collection + "/" + k.Backend.String()
}

// ChainBuilder constructs the chain for key. It may be slow (model pull, client setup).
type ChainBuilder func(ctx context.Context, key ChainKey) (Answerer, error)

// ChainCache memoizes answering chains per (collection, backend).
//
// Concurrent misses on one key share a single build, and the cache lock is not held
// while building. Invalidate bumps the collection's generation so a build that started
// before the invalidation is returned to its callers but not stored.
type ChainCache struct {
	build ChainBuilder

	mu          sync.Mutex
	chains      map[ChainKey]Answerer
	generations map[string]uint64
	group       singleflight.Group

	logger *slog.Logger
}

// NewChainCache creates an empty cache backed by build.
func NewChainCache(build ChainBuilder) *ChainCache {
	return &ChainCache{
		build:       build,
		chains:      make(map[ChainKey]Answerer),
		generations: make(map[string]uint64),
		logger:      slog.Default(),
	}
}

func (c *ChainCache) getLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return c.logger
}

// Get returns the cached chain for key, building it on a miss.
func (c *ChainCache) Get(ctx context.Context, key ChainKey) (Answerer, error) {
	c.mu.Lock()
	if chain, ok := c.chains[key]; ok {
		c.mu.Unlock()
		return chain, nil
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do(key.String(), func() (any, error) {
		c.mu.Lock()
		if chain, ok := c.chains[key]; ok {
			c.mu.Unlock()
			return chain, nil
		}
		gen := c.generations[key.Collection]
		c.mu.Unlock()

		chain, err := c.build(ctx, key)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generations[key.Collection] == gen {
			c.chains[key] = chain
		}
		c.mu.Unlock()
		c.getLogger(ctx).DebugContext(ctx, "answering chain built", "collection", key.Collection, "backend", key.Backend.String())
		return chain, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.getLogger(ctx).DebugContext(ctx, "shared chain build", "collection", key.Collection, "backend", key.Backend.String())
	}
	return v.(Answerer), nil
}

// Invalidate drops every cached chain of collection.
func (c *ChainCache) Invalidate(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[collection]++
	for key := range c.chains {
		if key.Collection == collection {
			delete(c.chains, key)
		}
	}
	// Later callers must not join a build that started before the invalidation.
	for _, b := range llm.Backends() {
		c.group.Forget(ChainKey{Collection: collection, Backend: b}.String())
	}
}

// Len returns the number of cached chains.
func (c *ChainCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chains)
}
