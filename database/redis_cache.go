package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis"
)

const (
	chatNameRedisPattern = "CHAT_NAME_%d"
	chatNameTTL          = time.Hour * 24
)

// NameCache 会话展示名缓存，推送标题用，避免每条消息都查库
type NameCache interface {
	GetName(chatID int64) (string, bool)
	SetName(chatID int64, name string)
	DelName(chatID int64)
}

// RedisNameCache redis NameCache
type RedisNameCache struct {
	client *redis.Client
}

// NewRedisNameCache NewRedisNameCache
func NewRedisNameCache(client *redis.Client) *RedisNameCache {
	return &RedisNameCache{client: client}
}

// GetName GetName
func (c *RedisNameCache) GetName(chatID int64) (string, bool) {
	cmd := c.client.Get(fmt.Sprintf(chatNameRedisPattern, chatID))
	name, err := cmd.Result()
	if err != nil {
		return "", false
	}
	return name, true
}

// SetName SetName
func (c *RedisNameCache) SetName(chatID int64, name string) {
	c.client.Set(fmt.Sprintf(chatNameRedisPattern, chatID), name, chatNameTTL)
}

// DelName 资料变更后失效
func (c *RedisNameCache) DelName(chatID int64) {
	c.client.Del(fmt.Sprintf(chatNameRedisPattern, chatID))
}

// MemNameCache 进程内 NameCache，单测和无 redis 部署用
type MemNameCache struct {
	mu    sync.RWMutex
	names map[int64]string
}

// NewMemNameCache NewMemNameCache
func NewMemNameCache() *MemNameCache {
	return &MemNameCache{names: make(map[int64]string)}
}

// GetName GetName
func (c *MemNameCache) GetName(chatID int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[chatID]
	return name, ok
}

// SetName SetName
func (c *MemNameCache) SetName(chatID int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[chatID] = name
}

// DelName DelName
func (c *MemNameCache) DelName(chatID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.names, chatID)
}
