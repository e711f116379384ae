package quota

import (
	"container/list"
	"sync"
	"time"
)

type locationEntry struct {
	name string
	loc  *time.Location
}

// locationCache is a small thread-safe LRU over time.LoadLocation results,
// so the admission path does not hit the zoneinfo database per request.
type locationCache struct {
	mu           sync.Mutex
	capacity     int
	items        map[string]*list.Element
	evictionList *list.List
}

func newLocationCache(capacity int) *locationCache {
	return &locationCache{
		capacity:     capacity,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
	}
}

// Load resolves an IANA timezone name, serving repeats from the cache.
func (c *locationCache) Load(name string) (*time.Location, error) {
	c.mu.Lock()
	if elem, found := c.items[name]; found {
		c.evictionList.MoveToFront(elem)
		loc := elem.Value.(*locationEntry).loc
		c.mu.Unlock()
		return loc, nil
	}
	c.mu.Unlock()

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.items[name]; !found {
		elem := c.evictionList.PushFront(&locationEntry{name: name, loc: loc})
		c.items[name] = elem

		if c.evictionList.Len() > c.capacity {
			oldest := c.evictionList.Back()
			if oldest != nil {
				c.evictionList.Remove(oldest)
				delete(c.items, oldest.Value.(*locationEntry).name)
			}
		}
	}

	return loc, nil
}
