package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// SetClient 设置 Redis 客户端（由 internal/initial 调用）
func SetClient(c *redis.Client) {
	client = c
}

// Close 关闭 Redis 连接
func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// IsConnected 检查 Redis 是否已连接
func IsConnected() bool {
	return client != nil
}

// GetClient 获取原始 Redis 客户端（高级用法）
func GetClient() *redis.Client {
	return client
}

// checkClient 检查客户端是否可用
func checkClient() error {
	if client == nil {
		return fmt.Errorf("Redis 未连接")
	}
	return nil
}

// ==================== Hash 操作 ====================

// HIncrBy Hash 字段原子自增
func HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	if err := checkClient(); err != nil {
		return 0, err
	}
	return client.HIncrBy(ctx, key, field, incr).Result()
}

// HDel 删除 Hash 字段
func HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if err := checkClient(); err != nil {
		return 0, err
	}
	return client.HDel(ctx, key, fields...).Result()
}

// HLen 获取 Hash 字段数量
func HLen(ctx context.Context, key string) (int64, error) {
	if err := checkClient(); err != nil {
		return 0, err
	}
	return client.HLen(ctx, key).Result()
}
