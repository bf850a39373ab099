package expr

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes compiled programs by source text.
//
// Thread-safety: Cache is safe for concurrent use. Concurrent compilations
// of the same source share one parse. Programs are immutable once built,
// so a cached program may be evaluated by any number of runs.
type Cache struct {
	mu    sync.RWMutex
	progs map[string]*Program
	group singleflight.Group
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{progs: make(map[string]*Program)}
}

var defaultCache = NewCache()

// Compile compiles src through the process-wide cache.
func Compile(src string, script bool) (*Program, error) {
	return defaultCache.Compile(src, script)
}

// Compile returns the cached program for src, parsing it on first use.
// Parse failures are not cached.
func (c *Cache) Compile(src string, script bool) (*Program, error) {
	key := "e:" + src
	if script {
		key = "s:" + src
	}

	c.mu.RLock()
	p, ok := c.progs[key]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		p, err := Parse(src, script)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.progs[key] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Program), nil
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.progs)
}
