package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

// Cache wraps a Backend with Redis-backed caching for single-document reads.
// Listings pass straight through. Redis failures never fail a request.
//
// Every key has a generation counter that writers bump before evicting. A
// fill only lands if the generation did not move while the document was
// being loaded, so a slow reader cannot put a superseded document back.
type Cache struct {
	Backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Backend wrapper using the provided Redis client and TTL.
func NewCache(base Backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base backend is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Backend: base, redis: client, ttl: ttl}
}

// Uncached returns the wrapped store for read-modify-write paths.
func (c *Cache) Uncached() Backend {
	return c.Backend
}

func (c *Cache) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return cached(ctx, c, projectCacheKey(id), func() (domain.Project, error) { return c.Backend.GetProject(ctx, id) })
}

func (c *Cache) PutProject(ctx context.Context, p domain.Project) error {
	if err := c.Backend.PutProject(ctx, p); err != nil {
		return err
	}
	c.evict(ctx, projectCacheKey(p.ID))
	return nil
}

func (c *Cache) DeleteProject(ctx context.Context, id string) error {
	err := c.Backend.DeleteProject(ctx, id)
	c.evict(ctx, projectCacheKey(id))
	return err
}

func (c *Cache) GetTeam(ctx context.Context, id string) (domain.Team, error) {
	return cached(ctx, c, teamCacheKey(id), func() (domain.Team, error) { return c.Backend.GetTeam(ctx, id) })
}

func (c *Cache) PutTeam(ctx context.Context, t domain.Team) error {
	if err := c.Backend.PutTeam(ctx, t); err != nil {
		return err
	}
	c.evict(ctx, teamCacheKey(t.ID))
	return nil
}

func (c *Cache) DeleteTeam(ctx context.Context, id string) error {
	err := c.Backend.DeleteTeam(ctx, id)
	c.evict(ctx, teamCacheKey(id))
	return err
}

func (c *Cache) GetUser(ctx context.Context, id string) (domain.User, error) {
	return cached(ctx, c, userCacheKey(id), func() (domain.User, error) { return c.Backend.GetUser(ctx, id) })
}

func (c *Cache) PutUser(ctx context.Context, u domain.User) error {
	if err := c.Backend.PutUser(ctx, u); err != nil {
		return err
	}
	c.evict(ctx, userCacheKey(u.ID))
	return nil
}

func cached[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	if v, ok := loadFromCache[T](ctx, c, key); ok {
		return v, nil
	}
	if c.redis == nil || c.ttl == 0 {
		return load()
	}

	var (
		v       T
		loadErr error
		loaded  bool
	)
	err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
		v, loadErr = load()
		loaded = true
		if loadErr != nil {
			return loadErr
		}
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, c.ttl)
			return nil
		})
		return err
	}, generationKey(key))

	if !loaded {
		return load()
	}
	if loadErr != nil {
		return v, loadErr
	}
	if err != nil && !errors.Is(err, redis.TxFailedErr) {
		log.WithField("key", key).WithError(err).Debug("cache fill skipped")
	}
	return v, nil
}

func loadFromCache[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T
	if c.redis == nil {
		return v, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return v, false
	}
	if err := sonic.Unmarshal(data, &v); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return v, false
	}
	return v, true
}

// evict bumps the key's generation and drops the cached value. The
// generation outlives any fill that could have started before the write.
func (c *Cache) evict(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	gen := generationKey(key)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, gen)
		pipe.Expire(ctx, gen, max(c.ttl, time.Minute))
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		log.WithField("key", key).WithError(err).Warn("cache eviction failed")
	}
}

func generationKey(key string) string {
	return key + ":gen"
}

func projectCacheKey(id string) string {
	return "project:" + id
}

func teamCacheKey(id string) string {
	return "team:" + id
}

func userCacheKey(id string) string {
	return "user:" + id
}
