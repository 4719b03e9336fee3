// Package cache содержит общий кэш запросов: Get по ключу с загрузкой при промахе
// и Invalidate, после которого следующий Get обязательно идет в бэкенд.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// KeyStories - ключ списка историй.
const KeyStories = "stories"

// ErrMiss возвращается хранилищем, если ключа нет или он истек.
var ErrMiss = errors.New("cache miss")

// Store - хранилище закодированных значений. Реализации: MemoryStore, RedisStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InvalidateFunc вызывается после каждой инвалидации ключа.
type InvalidateFunc func(key string)

// QueryCache - кэш запросов уровня процесса.
// Значения хранятся в JSON, каждый Get декодирует свою копию.
type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger

	mu        sync.RWMutex
	listeners []InvalidateFunc

	// Поколение ключа растет при каждой инвалидации.
	// Загрузка, начатая в старом поколении, не пишет результат в хранилище.
	genMu sync.Mutex
	gens  map[string]uint64
}

// New создает кэш. ttl <= 0 означает хранение до явной инвалидации.
func New(store Store, ttl time.Duration, logger *zap.Logger) *QueryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("QueryCache"),
		gens:   make(map[string]uint64),
	}
}

func (c *QueryCache) generation(key string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gens[key]
}

// OnInvalidate подписывает fn на инвалидации.
func (c *QueryCache) OnInvalidate(fn InvalidateFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Invalidate удаляет значение и сбрасывает незавершенную загрузку,
// так что следующий Get выполнит новый запрос. Подписчики уведомляются.
func (c *QueryCache) Invalidate(ctx context.Context, key string) error {
	err := c.Discard(ctx, key)

	c.mu.RLock()
	listeners := append([]InvalidateFunc(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(key)
	}
	return err
}

// Discard делает то же, что Invalidate, но без уведомления подписчиков.
// Используется для инвалидаций, пришедших от других экземпляров.
func (c *QueryCache) Discard(ctx context.Context, key string) error {
	c.genMu.Lock()
	c.gens[key]++
	c.genMu.Unlock()

	c.group.Forget(key)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Error("Failed to delete cached value", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("invalidate %q: %w", key, err)
	}
	c.logger.Debug("Cache key invalidated", zap.String("key", key))
	return nil
}

// Get возвращает значение из кэша или загружает его через fetch.
// Параллельные промахи по одному ключу схлопываются в один вызов fetch.
// Общая загрузка не отменяется вместе с запросом, который ее начал:
// каждый вызывающий ждет ее не дольше своего ctx.
// Ошибки fetch не кэшируются.
func Get[T any](ctx context.Context, c *QueryCache, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := Peek[T](ctx, c, key); ok {
		return v, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		gen := c.generation(key)
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cached value %q: %w", key, err)
		}
		c.storeFetched(fetchCtx, key, gen, data)
		return data, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}
	if res.Shared {
		c.logger.Debug("Shared in-flight fetch", zap.String("key", key))
	}

	var out T
	if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
		return zero, fmt.Errorf("decode cached value %q: %w", key, err)
	}
	return out, nil
}

// storeFetched сохраняет результат загрузки, начатой в поколении gen.
// Если ключ инвалидирован во время загрузки, результат не сохраняется;
// если инвалидация пришлась на саму запись, значение удаляется повторно.
func (c *QueryCache) storeFetched(ctx context.Context, key string, gen uint64, data []byte) {
	if c.generation(key) != gen {
		c.logger.Debug("Dropping fetch started before invalidation", zap.String("key", key))
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		// Значение все равно отдаем, кэш только ускоряет
		c.logger.Warn("Failed to store cached value", zap.String("key", key), zap.Error(err))
		return
	}
	if c.generation(key) != gen {
		if err := c.store.Delete(ctx, key); err != nil {
			c.logger.Error("Failed to delete stale cached value", zap.String("key", key), zap.Error(err))
		}
	}
}

// Peek возвращает свежее значение без загрузки. ok=false при промахе или ошибке хранилища.
func Peek[T any](ctx context.Context, c *QueryCache, key string) (T, bool) {
	var out T
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("Failed to read cached value", zap.String("key", key), zap.Error(err))
		}
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Warn("Corrupted cached value", zap.String("key", key), zap.Error(err))
		return out, false
	}
	return out, true
}
