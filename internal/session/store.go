package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the token/user pair in Redis. It is the only component
// touching storage directly; the Manager is its only writer.
//
// Storage failures never propagate to callers. A failed write degrades to
// "session not persisted", a corrupted record loads as an absent session.
type Store struct {
	client   *redis.Client
	tokenKey string
	userKey  string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewStore constructs a Store. tokenKey names the durable token key prefix
// (configurable via environment, see app.Config).
func NewStore(client *redis.Client, tokenKey string, ttl time.Duration, logger *slog.Logger) *Store {
	if tokenKey == "" {
		tokenKey = "crewboard_token"
	}
	return &Store{
		client:   client,
		tokenKey: tokenKey,
		userKey:  tokenKey + "_user",
		ttl:      ttl,
		logger:   logger,
	}
}

func (s *Store) tokenRedisKey(sid string) string { return s.tokenKey + ":" + sid }
func (s *Store) userRedisKey(sid string) string  { return s.userKey + ":" + sid }

// Save writes token and user in a single transaction so no reader observes
// one without the other.
func (s *Store) Save(ctx context.Context, sid, token string, user *User) {
	if sid == "" || token == "" || user == nil {
		s.log("session save skipped: incomplete session", sid, nil)
		return
	}
	payload, err := json.Marshal(user)
	if err != nil {
		s.log("session save: marshal user", sid, err)
		return
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenRedisKey(sid), token, s.ttl)
	pipe.Set(ctx, s.userRedisKey(sid), payload, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log("session save: exec", sid, err)
	}
}

// Load returns a fully-formed or fully empty session. A partial or corrupted
// record (token without user, invalid user JSON) is treated as absent and
// cleared so it cannot be partially trusted later.
func (s *Store) Load(ctx context.Context, sid string) Session {
	sess := Session{ID: sid}
	if sid == "" {
		return sess
	}

	token, err := s.client.Get(ctx, s.tokenRedisKey(sid)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log("session load: token", sid, err)
		}
		return sess
	}

	payload, err := s.client.Get(ctx, s.userRedisKey(sid)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log("session load: user", sid, err)
			return sess
		}
		// Token present, user absent: surface the token so the manager can
		// attempt recovery against the auth collaborator.
		sess.Token = token
		return sess
	}

	var user User
	if err := json.Unmarshal(payload, &user); err != nil {
		s.log("session load: corrupt user record", sid, err)
		s.Clear(ctx, sid)
		return Session{ID: sid}
	}

	sess.Token = token
	sess.User = &user
	return sess
}

// Clear removes both durable keys together.
func (s *Store) Clear(ctx context.Context, sid string) {
	if sid == "" {
		return
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.tokenRedisKey(sid))
	pipe.Del(ctx, s.userRedisKey(sid))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log("session clear", sid, err)
	}
}

// ActiveSessionIDs lists session ids that currently hold a token. Used by the
// background sync worker to decide which aggregates to warm.
func (s *Store) ActiveSessionIDs(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		ids    []string
	)
	prefix := s.tokenKey + ":"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			ids = append(ids, key[len(prefix):])
		}
		if next == 0 {
			return ids, nil
		}
		cursor = next
	}
}

func (s *Store) log(msg, sid string, err error) {
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.Warn(msg, slog.String("session_id", sid), slog.Any("error", err))
		return
	}
	s.logger.Warn(msg, slog.String("session_id", sid))
}
