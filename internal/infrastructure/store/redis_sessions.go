package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/chat-storefront/internal/session"
)

const sessionKeyPrefix = "chat:session:"

// RedisSessions stores sessions as JSON with a sliding TTL.
type RedisSessions struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessions(client *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{client: client, ttl: ttl}
}

// ConnectRedis builds a client and checks the server answers.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisSessions) Get(ctx context.Context, customerID string) (*session.Session, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+customerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s session.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", customerID, err)
	}
	return &s, nil
}

func (r *RedisSessions) Save(ctx context.Context, s *session.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKeyPrefix+s.CustomerID, raw, r.ttl).Err()
}

func (r *RedisSessions) Delete(ctx context.Context, customerID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+customerID).Err()
}
