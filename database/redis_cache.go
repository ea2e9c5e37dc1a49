package database

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

const (
	statusRedisPattern = "USER_STATUS_%v"
	statusExpire       = time.Hour * 24
)

// Status values broadcast to server rooms.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// RedisStatusCache redis StatusCache
type RedisStatusCache struct {
	client *redis.Client
}

// NewRedisStatusCache NewRedisStatusCache
func NewRedisStatusCache(client *redis.Client) *RedisStatusCache {
	return &RedisStatusCache{client: client}
}

// SetStatus SetStatus
func (c *RedisStatusCache) SetStatus(userID, status string) error {
	key := fmt.Sprintf(statusRedisPattern, userID)
	_, err := c.client.Set(key, status, statusExpire).Result()
	return err
}

// GetStatus users with no record are offline
func (c *RedisStatusCache) GetStatus(userID string) (string, error) {
	key := fmt.Sprintf(statusRedisPattern, userID)
	status, err := c.client.Get(key).Result()
	if err == redis.Nil {
		return StatusOffline, nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}

// InitRedis return a redis instance
func InitRedis(ip string, port int, pass string) *redis.Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", ip, port),
		Password: pass,
	})
	return redisdb
}
