package site

import (
	"database/sql"
	"sync"
	"time"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = sql.ErrNoRows

// PostCache is an in-memory cache of every stored post with a TTL. Listings
// and slug lookups are served from memory; writes go to the Store and then
// call Invalidate.
type PostCache struct {
	mu      sync.RWMutex
	posts   []Post
	bySlug  map[string]int
	fetched time.Time
	ttl     time.Duration
	store   *Store
	metrics *Metrics
}

// NewPostCache creates a PostCache backed by the given Store.
func NewPostCache(s *Store, ttl time.Duration) *PostCache {
	return &PostCache{store: s, ttl: ttl}
}

func (c *PostCache) valid() bool {
	return c.bySlug != nil && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PostCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.bySlug = nil
	c.mu.Unlock()
}

func (c *PostCache) load() error {
	if c.valid() {
		return nil
	}
	posts, err := c.store.ListPosts(true)
	if err != nil {
		return err
	}
	bySlug := make(map[string]int, len(posts))
	for i, p := range posts {
		bySlug[p.Slug] = i
	}
	c.posts = posts
	c.bySlug = bySlug
	c.fetched = time.Now()
	c.metrics.cacheLoad()
	return nil
}

// ensureLoaded returns the cached posts after making sure they are fresh.
// Only a reload takes the write lock.
func (c *PostCache) ensureLoaded() ([]Post, map[string]int, error) {
	c.mu.RLock()
	if c.valid() {
		posts, bySlug := c.posts, c.bySlug
		c.mu.RUnlock()
		return posts, bySlug, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, nil, err
	}
	return c.posts, c.bySlug, nil
}

// ListPosts returns posts newest first, with hidden posts only when
// includeHidden is set.
func (c *PostCache) ListPosts(includeHidden bool) ([]Post, error) {
	posts, _, err := c.ensureLoaded()
	if err != nil {
		return nil, err
	}
	if includeHidden {
		return posts, nil
	}
	listed := make([]Post, 0, len(posts))
	for _, p := range posts {
		if !p.Hidden {
			listed = append(listed, p)
		}
	}
	return listed, nil
}

// GetPost returns a post by slug. Hidden posts are returned too: they are
// unlisted, not private.
func (c *PostCache) GetPost(slug string) (Post, error) {
	posts, bySlug, err := c.ensureLoaded()
	if err != nil {
		return Post{}, err
	}
	i, ok := bySlug[slug]
	if !ok {
		return Post{}, ErrNotFound
	}
	return posts[i], nil
}
