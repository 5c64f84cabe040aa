package chatbridge

import "container/list"

// sessionCache is a fixed-capacity LRU keyed by session id, holding one
// agent.Runner per active conversation. No example in the pack ships a
// working LRU library (a few go.mod manifests list hashicorp/golang-lru
// as an indirect dependency with no source using it), so this is a small
// hand-rolled cache in the same style as container/list's own example —
// grounded on spec.md §4.10's "LRU cache of at most 20 agent instances".
type sessionCache struct {
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value runnerSession
}

func newSessionCache(capacity int) *sessionCache {
	if capacity <= 0 {
		capacity = 20
	}
	return &sessionCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// get returns the cached session for key, moving it to most-recently-used.
func (c *sessionCache) get(key string) (runnerSession, bool) {
	el, ok := c.items[key]
	if !ok {
		return runnerSession{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

// put inserts or refreshes key, evicting the least-recently-used entry if
// the cache is over capacity.
func (c *sessionCache) put(key string, value runnerSession) {
	if el, ok := c.items[key]; ok {
		el.Value.(*cacheEntry).value = value
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, value: value})
	c.items[key] = el
	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

// delete evicts a session outright, e.g. when its chat history is deleted.
func (c *sessionCache) delete(key string) {
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

func (c *sessionCache) len() int { return c.ll.Len() }
