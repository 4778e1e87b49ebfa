//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civreg/internal/ratelimit"
	"civreg/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *ratelimit.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = ratelimit.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestBudgetSharedAcrossCalls() {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := s.store.Allow(ctx, "user-1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "user-1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)

	res, err = s.store.Allow(ctx, "user-2", 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()

	res, err := s.store.Allow(ctx, "user-1", 1, 500*time.Millisecond)
	s.Require().NoError(err)
	s.Require().True(res.Allowed)

	res, err = s.store.Allow(ctx, "user-1", 1, 500*time.Millisecond)
	s.Require().NoError(err)
	s.Require().False(res.Allowed)

	time.Sleep(600 * time.Millisecond)

	res, err = s.store.Allow(ctx, "user-1", 1, 500*time.Millisecond)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
