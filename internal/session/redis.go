package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"parkhub/internal/database"
)

// RedisRepository keeps sessions in redis with a TTL, so abandoned
// selections age out on their own.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func sessionKey(adminID int64) string {
	return fmt.Sprintf("parkhub:session:%d", adminID)
}

func (r *RedisRepository) GetSession(ctx context.Context, adminID int64) (*database.AdminSession, error) {
	data, err := r.client.Get(ctx, sessionKey(adminID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session %d: %w", adminID, err)
	}
	var s database.AdminSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("redis decode session %d: %w", adminID, err)
	}
	return &s, nil
}

func (r *RedisRepository) SetSession(ctx context.Context, s *database.AdminSession) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis encode session %d: %w", s.AdminID, err)
	}
	if err := r.client.Set(ctx, sessionKey(s.AdminID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %d: %w", s.AdminID, err)
	}
	return nil
}

func (r *RedisRepository) ClearSession(ctx context.Context, adminID int64) error {
	if err := r.client.Del(ctx, sessionKey(adminID)).Err(); err != nil {
		return fmt.Errorf("redis clear session %d: %w", adminID, err)
	}
	return nil
}
