package namespace

import (
	"container/list"
	"sync"
	"time"

	"github.com/marmos91/nsfs/pkg/metrics"
	"github.com/marmos91/nsfs/pkg/store/metadata"
)

// DentryCacheConfig configures the dentry cache.
type DentryCacheConfig struct {
	// Enabled turns the cache on. A disabled cache never stores anything.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// TTL bounds how long an entry is served (default: 1s)
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// MaxEntries bounds the cache size; least recently used entries are
	// evicted first (default: 16384)
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// DentryCache caches node attributes by namespace path.
//
// Every mutation made through the Tree invalidates the affected paths. A
// lookup that raced with a mutation must not re-insert the attributes it
// read before the mutation, so insertions carry the generation observed
// before the store read and are dropped if any invalidation happened since.
type DentryCache struct {
	mu         sync.Mutex
	enabled    bool
	ttl        time.Duration
	maxEntries int
	entries    map[string]*list.Element
	lru        *list.List
	generation uint64
	now        func() time.Time
	metrics    metrics.MetadataMetrics
}

type dentry struct {
	path    string
	attr    metadata.FileAttr
	expires time.Time
}

// NewDentryCache creates a cache. m may be nil.
func NewDentryCache(cfg DentryCacheConfig, m metrics.MetadataMetrics) *DentryCache {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 16384
	}
	if m == nil {
		m = metrics.NewNoopMetadataMetrics()
	}
	return &DentryCache{
		enabled:    cfg.Enabled,
		ttl:        cfg.TTL,
		maxEntries: cfg.MaxEntries,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
		metrics:    m,
	}
}

// Generation returns the current invalidation generation.
func (c *DentryCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Get returns a copy of the cached attributes for path.
func (c *DentryCache) Get(path string) (*metadata.FileAttr, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[path]
	if !ok {
		c.metrics.RecordCacheMiss("dentry")
		return nil, false
	}

	d := elem.Value.(*dentry)
	if c.now().After(d.expires) {
		c.removeElement(elem)
		c.metrics.RecordCacheMiss("dentry")
		return nil, false
	}

	c.lru.MoveToFront(elem)
	c.metrics.RecordCacheHit("dentry")
	attr := d.attr
	return &attr, true
}

// Put stores attr for path unless the cache was invalidated after gen.
func (c *DentryCache) Put(path string, attr *metadata.FileAttr, gen uint64) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	expires := c.now().Add(c.ttl)
	if elem, ok := c.entries[path]; ok {
		d := elem.Value.(*dentry)
		d.attr = *attr
		d.expires = expires
		c.lru.MoveToFront(elem)
		return
	}

	c.entries[path] = c.lru.PushFront(&dentry{path: path, attr: *attr, expires: expires})
	for c.lru.Len() > c.maxEntries {
		c.removeElement(c.lru.Back())
	}
}

// Invalidate drops path from the cache and bumps the generation.
func (c *DentryCache) Invalidate(path string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if elem, ok := c.entries[path]; ok {
		c.removeElement(elem)
	}
}

// Len returns the number of cached entries.
func (c *DentryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *DentryCache) removeElement(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.entries, elem.Value.(*dentry).path)
}
