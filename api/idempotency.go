package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// HeaderIdempotencyKey names the header clients use to make a mutation safe to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

// RedisDeduper remembers idempotency keys in redis so every API instance
// rejects a replayed mutation.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return fmt.Sprintf("idem:%s:%s", userID, key)
}

// Add records the key and reports whether it was new.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

// Remove forgets a key so a failed mutation may be retried with it.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}

// Idempotency rejects a mutating request whose Idempotency-Key the caller
// already used with 409. Keys of failed requests are released. Without a
// deduper or a key the request passes through.
func Idempotency(d Deduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
			if d == nil || key == "" || c.Request().Method == http.MethodGet {
				return next(c)
			}
			sess, ok := sessionFrom(c)
			if !ok {
				return next(c)
			}
			scoped := c.Request().Method + " " + c.Path() + " " + key
			ctx := c.Request().Context()
			added, err := d.Add(ctx, sess.UserID, scoped)
			if err != nil {
				// Redis being down must not block writes.
				log.WithError(err).Warn("idempotency check failed")
				return next(c)
			}
			if !added {
				return echo.NewHTTPError(http.StatusConflict, "duplicate request")
			}
			err = next(c)
			if err != nil || c.Response().Status >= http.StatusInternalServerError {
				if rerr := d.Remove(context.WithoutCancel(ctx), sess.UserID, scoped); rerr != nil {
					log.WithError(rerr).Warn("unable to release idempotency key")
				}
			}
			return err
		}
	}
}
