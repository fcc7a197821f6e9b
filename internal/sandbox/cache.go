package sandbox

import (
	"container/list"
	"sync"

	"github.com/basilisk-ai/rce/pkg/rcetypes"
)

// resultCache memoizes InterpreterResult by (code, session-state-hash),
// per spec §4.3 "Caching," with LRU eviction once cap is reached.
type resultCache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	index map[cacheKey]*list.Element
}

type cacheKey struct {
	code string
	hash string
}

type cacheEntry struct {
	key    cacheKey
	result rcetypes.InterpreterResult
}

func newResultCache(cap int) *resultCache {
	return &resultCache{cap: cap, ll: list.New(), index: make(map[cacheKey]*list.Element)}
}

func (c *resultCache) get(code, hash string) (rcetypes.InterpreterResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{code: code, hash: hash}
	el, ok := c.index[key]
	if !ok {
		return rcetypes.InterpreterResult{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

func (c *resultCache) put(code, hash string, result rcetypes.InterpreterResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{code: code, hash: hash}
	if el, ok := c.index[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).result = result
		return
	}
	el := c.ll.PushFront(&cacheEntry{key: key, result: result})
	c.index[key] = el
	if c.cap > 0 && c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(*cacheEntry).key)
		}
	}
}
