package server

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Cache holds rendered API bodies keyed by request URI. Entries expire
// after the TTL and the least recently read entry is dropped when full.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time

	byKey  map[string]*list.Element
	recent *list.List // front is the most recently used response

	hits, misses int64
}

type response struct {
	key         string
	body        []byte
	contentType string
	stored      time.Time
}

// CacheStats is the /api/v1/cache payload.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCache returns an empty cache. capacity < 1 turns Put into a no-op.
func NewCache(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		byKey:    make(map[string]*list.Element),
		recent:   list.New(),
	}
}

// Get looks up key. Expired responses are dropped and count as misses.
func (c *Cache) Get(key string) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[key]
	if ok && c.now().Sub(el.Value.(*response).stored) > c.ttl {
		c.drop(el)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, "", false
	}
	c.recent.MoveToFront(el)
	c.hits++
	r := el.Value.(*response)
	return r.body, r.contentType, true
}

// Put stores body under key, replacing any previous response.
func (c *Cache) Put(key, contentType string, body []byte) {
	if c.capacity < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r := &response{key: key, body: body, contentType: contentType, stored: c.now()}
	if el, ok := c.byKey[key]; ok {
		el.Value = r
		c.recent.MoveToFront(el)
		return
	}
	for c.recent.Len() >= c.capacity {
		c.drop(c.recent.Back())
	}
	c.byKey[key] = c.recent.PushFront(r)
}

// Invalidate drops the responses whose key has the given prefix; "" drops
// them all.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix == "" {
		c.byKey = make(map[string]*list.Element)
		c.recent.Init()
		return
	}
	for key, el := range c.byKey {
		if strings.HasPrefix(key, prefix) {
			c.drop(el)
		}
	}
}

// Stats snapshots the entry count and hit counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Entries:    c.recent.Len(),
		MaxEntries: c.capacity,
		Hits:       c.hits,
		Misses:     c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache) drop(el *list.Element) {
	delete(c.byKey, el.Value.(*response).key)
	c.recent.Remove(el)
}
