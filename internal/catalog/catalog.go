// Package catalog keeps an in-process copy of the videos and categories
// collections. Entries expire after a fixed TTL, can be invalidated
// explicitly, and are refreshed in the background while the service runs.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
)

type catalogReader interface {
	ListVideos(ctx context.Context) ([]models.Video, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type snapshot struct {
	videos     []models.Video
	categories []models.Category
	loadedAt   time.Time
}

// Cache is a read-through cache of the catalog. The slices and maps it hands
// out are shared between callers and must not be modified.
type Cache struct {
	db  catalogReader
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	current *snapshot

	loads        singleflight.Group
	errorChannel chan error
}

// Option tunes a Cache.
type Option func(*Cache)

// WithClock replaces time.Now. Tests use it to move past the TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache over db whose entries live for ttl.
func New(db catalogReader, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		db:           db,
		ttl:          ttl,
		now:          time.Now,
		errorChannel: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Cache) fresh() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil || c.now().Sub(c.current.loadedAt) >= c.ttl {
		return nil
	}

	return c.current
}

func (c *Cache) get(ctx context.Context) (*snapshot, error) {
	if s := c.fresh(); s != nil {
		return s, nil
	}

	// Concurrent misses share one load. The load is detached from the
	// caller's context so that one cancelled request does not fail the rest.
	result, err, _ := c.loads.Do("catalog", func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}

	return result.(*snapshot), nil
}

func (c *Cache) load(ctx context.Context) (*snapshot, error) {
	videos, err := c.db.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("in internal/catalog/catalog.go: error while `c.db.ListVideos()` calling: %w", err)
	}

	categories, err := c.db.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("in internal/catalog/catalog.go: error while `c.db.ListCategories()` calling: %w", err)
	}

	if videos == nil {
		videos = []models.Video{}
	}
	if categories == nil {
		categories = []models.Category{}
	}

	s := &snapshot{
		videos:     videos,
		categories: categories,
		loadedAt:   c.now(),
	}

	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	return s, nil
}

// Videos returns every video.
func (c *Cache) Videos(ctx context.Context) ([]models.Video, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}

	return s.videos, nil
}

// Categories returns every category.
func (c *Cache) Categories(ctx context.Context) ([]models.Category, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}

	return s.categories, nil
}

// Video finds a video by id.
func (c *Cache) Video(ctx context.Context, videoID string) (models.Video, error) {
	videos, err := c.Videos(ctx)
	if err != nil {
		return nil, err
	}

	for _, v := range videos {
		if v.ID() == videoID {
			return v, nil
		}
	}

	return nil, models.ErrVideoNotFound
}

// Category finds a category by id.
func (c *Cache) Category(ctx context.Context, categoryID string) (models.Category, error) {
	categories, err := c.Categories(ctx)
	if err != nil {
		return nil, err
	}

	for _, category := range categories {
		if category.ID() == categoryID {
			return category, nil
		}
	}

	return nil, models.ErrCategoryNotFound
}

// Invalidate drops the cached catalog; the next read goes to the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Refresh reloads the catalog unconditionally.
func (c *Cache) Refresh(ctx context.Context) error {
	c.Invalidate()
	_, err := c.get(ctx)

	return err
}

// ListenErrors passes background refresh failures to callback.
func (c *Cache) ListenErrors(callback func(error)) {
	go func() {
		for err := range c.errorChannel {
			callback(err)
		}
	}()
}

// Run refreshes the catalog every interval until ctx is done. Failed
// refreshes keep serving the previous snapshot until it expires.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	go func() {
		defer close(c.errorChannel)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.load(ctx); err != nil {
					select {
					case c.errorChannel <- err:
					default:
					}
					continue
				}
				logger.Log.Debugln("catalog refreshed")
			}
		}
	}()
}
