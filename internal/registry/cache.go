package registry

import "container/list"

// lookupCache is a fixed-capacity LRU cache from host to lookup
// result. No LRU library appears anywhere in the retrieved pack, so
// this is built directly on container/list per stdlib's own documented
// LRU recipe; see DESIGN.md.
type lookupCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	host   string
	result lookupResult
}

func newLookupCache(capacity int) *lookupCache {
	return &lookupCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *lookupCache) get(host string) (lookupResult, bool) {
	el, ok := c.entries[host]
	if !ok {
		return lookupResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *lookupCache) put(host string, result lookupResult) {
	if el, ok := c.entries[host]; ok {
		el.Value.(*cacheEntry).result = result
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{host: host, result: result})
	c.entries[host] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).host)
		}
	}
}

func (c *lookupCache) clear() {
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}
