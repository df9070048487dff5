package client

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/exp/slog"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 300 * time.Second
)

// ключи серверных данных, которые читаются только онлайн
const (
	cacheProAccount   = "company:pro_account"
	cacheLinks        = "company:links"
	cacheMemberships  = "company:memberships"
	cacheLicenses     = "company:licenses"
	cacheServerStatus = "sync:status"
	companyPrefix     = "company:"
)

// CacheStore - второй уровень кеша, переживающий процесс CLI
type CacheStore interface {
	GetCached(ctx context.Context, key string, now time.Time) ([]byte, bool, error)
	PutCached(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	DeleteCached(ctx context.Context, prefix string) error
}

// Cache - TTL-кеш ответов сервера. Память процесса плюс, если задан,
// CacheStore: каждая команда CLI - отдельный процесс.
type Cache struct {
	lru   *expirable.LRU[string, any]
	ttl   time.Duration
	store CacheStore
	log   *slog.Logger
	now   func() time.Time
}

func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		lru: expirable.NewLRU[string, any](size, nil, ttl),
		ttl: ttl,
		log: slog.Default(),
		now: time.Now,
	}
}

// WithStore подключает постоянное хранилище
func (c *Cache) WithStore(store CacheStore, log *slog.Logger) *Cache {
	c.store = store
	if log != nil {
		c.log = log.With("component", "cache")
	}
	return c
}

// Set кладет значение только в память
func (c *Cache) Set(key string, value any) {
	c.lru.Add(key, value)
}

// Invalidate удаляет ключи с указанным префиксом
func (c *Cache) Invalidate(ctx context.Context, prefix string) {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
	c.deleteStored(ctx, prefix)
}

func (c *Cache) Purge(ctx context.Context) {
	c.lru.Purge()
	c.deleteStored(ctx, "")
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) deleteStored(ctx context.Context, prefix string) {
	if c.store == nil {
		return
	}
	// вызывается из defer после запроса, ctx мог истечь
	if err := c.store.DeleteCached(context.WithoutCancel(ctx), prefix); err != nil {
		c.log.Warn("не удалось очистить кеш", "prefix", prefix, "error", err)
	}
}

func (c *Cache) load(ctx context.Context, key string) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	raw, ok, err := c.store.GetCached(ctx, key, c.now())
	if err != nil {
		c.log.Warn("не удалось прочитать кеш", "key", key, "error", err)
		return nil, false
	}
	return raw, ok
}

func (c *Cache) persist(ctx context.Context, key string, value any) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("не удалось сериализовать значение кеша", "key", key, "error", err)
		return
	}
	if err := c.store.PutCached(ctx, key, raw, c.now().Add(c.ttl)); err != nil {
		c.log.Warn("не удалось сохранить кеш", "key", key, "error", err)
	}
}

// cached возвращает значение из памяти, затем из хранилища,
// иначе загружает его через load и сохраняет на оба уровня
func cached[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	if v, ok := c.lru.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	// из хранилища в память не переносим: у записи в памяти был бы полный ttl
	if raw, ok := c.load(ctx, key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	c.persist(ctx, key, v)
	return v, nil
}
