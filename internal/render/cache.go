package render

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MJE43/visual-replay-go/internal/engine"
	"github.com/MJE43/visual-replay-go/internal/visuals"
)

// cachedFrame remembers which generator produced a frame, so a generator
// upgrade invalidates old entries on read.
type cachedFrame struct {
	Version string
	Frame   visuals.Frame
	JSON    []byte
}

// frameCache is an expiring LRU of rendered frames keyed by effect, seed
// and inputs. Cached frames are shared and must be treated as read-only.
type frameCache struct {
	lru *expirable.LRU[string, *cachedFrame]
}

func newFrameCache(size int, ttl time.Duration) *frameCache {
	return &frameCache{
		lru: expirable.NewLRU[string, *cachedFrame](size, nil, ttl),
	}
}

func (c *frameCache) Get(key string) (*cachedFrame, bool) {
	entry, found := c.lru.Get(key)
	if !found {
		return nil, false
	}
	if entry.Version != engine.Version {
		c.lru.Remove(key)
		return nil, false
	}
	return entry, true
}

func (c *frameCache) Set(key string, frame visuals.Frame, encoded []byte) {
	c.lru.Add(key, &cachedFrame{Version: engine.Version, Frame: frame, JSON: encoded})
}

func (c *frameCache) Len() int {
	return c.lru.Len()
}

func (c *frameCache) Clear() {
	c.lru.Purge()
}
