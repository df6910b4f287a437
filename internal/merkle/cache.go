package merkle

import "container/list"

// DefaultCacheBytes is the default LRU byte budget for cached trees,
// per spec §3 (50 MiB).
const DefaultCacheBytes = 50 * 1024 * 1024

// LayerCache supplies a *Tree per file path on demand, evicting the
// least-recently-used tree once the cache's total byte footprint
// (one HashSize-sized entry per node, summed over every layer)
// exceeds the configured budget.
//
// No cache library appears in the teacher's or pack's dependency set
// for this scale of bounded map; LayerCache is hand-rolled with
// stdlib container/list, the same register the teacher uses for its
// other small internal collections (e.g. its piece/connection sets).
type LayerCache struct {
	maxBytes     int64
	currentBytes int64
	ll           *list.List // front = most recently used
	items        map[string]*list.Element
}

type cacheEntry struct {
	path  string
	tree  *Tree
	bytes int64
}

// NewLayerCache returns a cache capped at maxBytes; zero or negative
// selects DefaultCacheBytes.
func NewLayerCache(maxBytes int64) *LayerCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &LayerCache{
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func treeByteFootprint(t *Tree) int64 {
	var total int64
	for _, layer := range t.layers {
		total += int64(len(layer)) * HashSize
	}
	return total
}

// Get returns the cached tree for path, marking it most-recently-used.
func (c *LayerCache) Get(path string) (*Tree, bool) {
	el, ok := c.items[path]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).tree, true
}

// Put inserts or replaces the tree for path and evicts from the back
// of the LRU list until the cache fits within its byte budget.
func (c *LayerCache) Put(path string, t *Tree) {
	size := treeByteFootprint(t)
	if el, ok := c.items[path]; ok {
		c.currentBytes -= el.Value.(*cacheEntry).bytes
		c.ll.Remove(el)
		delete(c.items, path)
	}
	entry := &cacheEntry{path: path, tree: t, bytes: size}
	el := c.ll.PushFront(entry)
	c.items[path] = el
	c.currentBytes += size
	c.evict()
}

func (c *LayerCache) evict() {
	for c.currentBytes > c.maxBytes {
		back := c.ll.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*cacheEntry)
		c.ll.Remove(back)
		delete(c.items, entry.path)
		c.currentBytes -= entry.bytes
	}
}

// Len returns the number of cached trees.
func (c *LayerCache) Len() int { return len(c.items) }
