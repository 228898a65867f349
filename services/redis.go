package services

import (
	"context"
	"fmt"
	"schoolchat/config"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

func NewRedisClient(conf *config.ConfigSchema) (*redis.Client, error) {
	if conf == nil {
		return nil, fmt.Errorf("AppConfig is not loaded")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", conf.Redis.Host, conf.Redis.Port),
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	// Тест соединения
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Удаляем ключ, только если он всё ещё наш
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker - блокировка на SET NX с TTL
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return token, ok, nil
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
