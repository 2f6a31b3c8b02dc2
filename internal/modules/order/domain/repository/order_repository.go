package repository

import (
	"context"
	"time"

	"OrderPulse/internal/modules/order/domain/entity"
)

type OrderStatsCount struct {
	Total      int64
	New        int64
	InProgress int64
	Completed  int64
	Today      int64
}

type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByUUID(ctx context.Context, uuid string) (*entity.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]entity.Order, error)
	// UpdateStatus 返回更新前的状态
	UpdateStatus(ctx context.Context, uuid string, status string, at time.Time) (string, error)
	CountStats(ctx context.Context, since time.Time) (*OrderStatsCount, error)
}

// PresenceRepository 在线用户登记，一个用户可能有多条连接
type PresenceRepository interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
	Count(ctx context.Context) (int64, error)
}
