//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"registrar/internal/auth/models"
	"registrar/internal/auth/store/session"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *session.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = session.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func newSession(userID int64, ttl time.Duration) *models.Session {
	now := time.Now()
	return &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  "ada",
		Role:      "student",
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s *RedisStoreSuite) TestCreateFindRoundTrip() {
	ctx := context.Background()
	sess := newSession(1, time.Hour)

	s.Require().NoError(s.store.Create(ctx, sess))

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(sess.UserID, found.UserID)
	s.Equal(sess.Role, found.Role)

	_, err = s.store.FindByID(ctx, uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestCreateRejectsExpiredSession() {
	s.Error(s.store.Create(context.Background(), newSession(1, -time.Minute)))
}

func (s *RedisStoreSuite) TestRevokeDeactivates() {
	ctx := context.Background()
	sess := newSession(1, time.Hour)
	s.Require().NoError(s.store.Create(ctx, sess))

	active, err := s.store.IsActive(ctx, sess.ID)
	s.Require().NoError(err)
	s.Require().True(active)

	s.Require().NoError(s.store.Revoke(ctx, sess.ID, time.Now()))

	active, err = s.store.IsActive(ctx, sess.ID)
	s.Require().NoError(err)
	s.False(active)

	found, err := s.store.FindByID(ctx, sess.ID)
	s.Require().NoError(err)
	s.NotNil(found.RevokedAt)
}

func (s *RedisStoreSuite) TestRevokeAllForUser() {
	ctx := context.Background()

	mine := []*models.Session{newSession(1, time.Hour), newSession(1, time.Hour)}
	other := newSession(2, time.Hour)
	for _, sess := range append(mine, other) {
		s.Require().NoError(s.store.Create(ctx, sess))
	}

	s.Require().NoError(s.store.RevokeAllForUser(ctx, 1, time.Now()))

	for _, sess := range mine {
		active, err := s.store.IsActive(ctx, sess.ID)
		s.Require().NoError(err)
		s.False(active)
	}

	active, err := s.store.IsActive(ctx, other.ID)
	s.Require().NoError(err)
	s.True(active)
}

func (s *RedisStoreSuite) TestUnknownSessionIsInactive() {
	active, err := s.store.IsActive(context.Background(), uuid.NewString())
	s.Require().NoError(err)
	s.False(active)
}
