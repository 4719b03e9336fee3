package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"storylens/internal/cache"
)

// RedisStoreSuite проверяет RedisStore и QueryCache на настоящем Redis.
type RedisStoreSuite struct {
	suite.Suite
	ctx         context.Context
	rdContainer *tcredis.RedisContainer
	redisClient *redis.Client
	logger      *zap.Logger
}

func (s *RedisStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err)

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")

	host, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)

	s.redisClient, err = cache.ConnectRedis(s.ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()))
	require.NoError(s.T(), err, "Failed to connect to test redis")
}

func (s *RedisStoreSuite) TearDownSuite() {
	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.rdContainer != nil {
		if err := s.rdContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate redis container", zap.Error(err))
		}
	}
}

func (s *RedisStoreSuite) SetupTest() {
	require.NoError(s.T(), s.redisClient.FlushDB(s.ctx).Err())
}

func (s *RedisStoreSuite) TestSetGetDelete() {
	store := cache.NewRedisStore(s.redisClient, "", s.logger)

	_, err := store.Get(s.ctx, "missing")
	s.ErrorIs(err, cache.ErrMiss)

	s.Require().NoError(store.Set(s.ctx, "k", []byte(`{"a":1}`), time.Minute))
	v, err := store.Get(s.ctx, "k")
	s.Require().NoError(err)
	s.Equal(`{"a":1}`, string(v))

	ttl, err := s.redisClient.TTL(s.ctx, cache.DefaultRedisPrefix+"k").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))

	s.Require().NoError(store.Delete(s.ctx, "k"))
	_, err = store.Get(s.ctx, "k")
	s.ErrorIs(err, cache.ErrMiss)
}

func (s *RedisStoreSuite) TestQueryCacheSharedBetweenInstances() {
	// Два экземпляра сервера с общим Redis
	a := cache.New(cache.NewRedisStore(s.redisClient, "", s.logger), time.Minute, s.logger)
	b := cache.New(cache.NewRedisStore(s.redisClient, "", s.logger), time.Minute, s.logger)

	calls := 0
	fetch := func(context.Context) ([]string, error) {
		calls++
		return []string{"abc123"}, nil
	}

	got, err := cache.Get(s.ctx, a, cache.KeyStories, fetch)
	s.Require().NoError(err)
	s.Equal([]string{"abc123"}, got)

	got, err = cache.Get(s.ctx, b, cache.KeyStories, fetch)
	s.Require().NoError(err)
	s.Equal([]string{"abc123"}, got)
	s.Equal(1, calls)

	s.Require().NoError(b.Invalidate(s.ctx, cache.KeyStories))
	_, ok := cache.Peek[[]string](s.ctx, a, cache.KeyStories)
	s.False(ok)
}

func (s *RedisStoreSuite) TestRelayDeliversForeignInvalidations() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	a := cache.NewRelay(s.redisClient, "", s.logger)
	b := cache.NewRelay(s.redisClient, "", s.logger)

	got := make(chan string, 4)
	go func() { _ = b.Run(ctx, func(key string) { got <- key }) }()
	ownCh := make(chan string, 4)
	go func() { _ = a.Run(ctx, func(key string) { ownCh <- key }) }()

	// Ждем подписку обоих
	s.Require().Eventually(func() bool {
		n, err := s.redisClient.PubSubNumSub(s.ctx, cache.DefaultInvalidationChannel).Result()
		return err == nil && n[cache.DefaultInvalidationChannel] == 2
	}, 5*time.Second, 50*time.Millisecond)

	a.Publish(cache.KeyStories)

	select {
	case key := <-got:
		s.Equal(cache.KeyStories, key)
	case <-time.After(5 * time.Second):
		s.Fail("invalidation was not relayed")
	}
	select {
	case key := <-ownCh:
		s.Failf("own invalidation echoed", "key %s", key)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}
