package advisory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"CyberAlerter/internal/utils"
)

// Cache 以URL为键缓存公告源的响应体。nil 表示禁用缓存。
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *utils.Logger
}

// NewCache client 为 nil 时返回 nil
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		client: client,
		ttl:    ttl,
		prefix: "cyberalerter:advisory:",
		logger: utils.NewLogger("cache"),
	}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("读取缓存失败: %v", err)
		}
		return nil, false
	}
	return b, true
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	if c == nil {
		return
	}
	if err := c.client.SetEx(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("写入缓存失败: %v", err)
	}
}
