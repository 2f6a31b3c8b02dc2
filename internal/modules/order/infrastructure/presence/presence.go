package presence

import (
	"context"
	"sync"

	"OrderPulse/internal/modules/order/domain/repository"
	"OrderPulse/pkg/redis"
)

const onlineKey = "orderpulse:online"

// redisPresence 在线用户存 Hash：field 为 userID，值为该用户的连接数
type redisPresence struct {
	key string
}

func NewRedisPresence() repository.PresenceRepository {
	return &redisPresence{key: onlineKey}
}

func (p *redisPresence) Online(ctx context.Context, userID string) error {
	_, err := redis.HIncrBy(ctx, p.key, userID, 1)
	return err
}

func (p *redisPresence) Offline(ctx context.Context, userID string) error {
	n, err := redis.HIncrBy(ctx, p.key, userID, -1)
	if err != nil {
		return err
	}
	if n <= 0 {
		_, err = redis.HDel(ctx, p.key, userID)
	}
	return err
}

func (p *redisPresence) Count(ctx context.Context) (int64, error) {
	return redis.HLen(ctx, p.key)
}

// memoryPresence 未配置 Redis 时的单实例实现
type memoryPresence struct {
	mu    sync.Mutex
	conns map[string]int
}

func NewMemoryPresence() repository.PresenceRepository {
	return &memoryPresence{conns: make(map[string]int)}
}

func (p *memoryPresence) Online(_ context.Context, userID string) error {
	p.mu.Lock()
	p.conns[userID]++
	p.mu.Unlock()
	return nil
}

func (p *memoryPresence) Offline(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns[userID] <= 1 {
		delete(p.conns, userID)
		return nil
	}
	p.conns[userID]--
	return nil
}

func (p *memoryPresence) Count(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.conns)), nil
}

// New 有 Redis 连接时用 Redis，否则退回内存
func New() repository.PresenceRepository {
	if redis.IsConnected() {
		return NewRedisPresence()
	}
	return NewMemoryPresence()
}
