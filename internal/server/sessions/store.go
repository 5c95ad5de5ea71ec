// Package sessions keeps server-side login sessions and revoked access token
// IDs in Redis.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gin-org/sitebackend/internal/common"
	goredis "github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "session:"
	revokedPrefix = "token:revoked:"

	sessionIDBytes = 16
)

// Session binds a random opaque ID to an account until it expires.
type Session struct {
	ID        string    `json:"-"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store is a Redis-backed session store. The key TTL is the session lifetime.
type Store struct {
	rdb goredis.Cmdable
	now func() time.Time
}

func NewStore(rdb goredis.Cmdable) *Store {
	return &Store{rdb: rdb, now: time.Now}
}

// Connect opens a Redis client and checks it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return rdb, nil
}

func (s *Store) Create(ctx context.Context, accountID string, ttl time.Duration) (*Session, error) {
	id, err := common.MakeRandHexString(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating session id: %w", err)
	}

	now := s.now()
	sess := &Session{
		ID:        id,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	b, err := json.Marshal(sess)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, sessionPrefix+sess.ID, b, ttl).Err(); err != nil {
		return nil, common.Unavailable("redis error", err)
	}
	return sess, nil
}

// Get returns the session or common.ErrorNotFound when it is unknown or expired.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, common.ErrorNotFound
	}

	b, err := s.rdb.Get(ctx, sessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, common.Unavailable("redis error", err)
	}

	sess := &Session{}
	if err := json.Unmarshal(b, sess); err != nil {
		// A corrupt entry cannot authenticate anyone.
		return nil, common.ErrorNotFound
	}
	sess.ID = id
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionPrefix+id).Err(); err != nil {
		return common.Unavailable("redis error", err)
	}
	return nil
}

// RevokeToken blacklists an access token ID for its remaining lifetime.
func (s *Store) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, revokedPrefix+jti, "1", ttl).Err(); err != nil {
		return common.Unavailable("redis error", err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, common.Unavailable("redis error", err)
	}
	return n > 0, nil
}
