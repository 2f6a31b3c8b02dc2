package persistence

import (
	"context"
	"time"

	"OrderPulse/internal/modules/order/domain/entity"
	"OrderPulse/internal/modules/order/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type orderRepositoryImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepositoryImpl{db: db}
}

func (r *orderRepositoryImpl) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepositoryImpl) GetByUUID(ctx context.Context, uuid string) (*entity.Order, error) {
	var o entity.Order
	// First 查不到会返回 ErrRecordNotFound
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepositoryImpl) ListByCustomer(ctx context.Context, customerID string, limit int) ([]entity.Order, error) {
	var list []entity.Order
	q := r.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepositoryImpl) UpdateStatus(ctx context.Context, uuid string, status string, at time.Time) (string, error) {
	var prev string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o entity.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id, status").
			Where("uuid = ?", uuid).
			First(&o).Error; err != nil {
			return err
		}
		prev = o.Status
		return tx.Model(&entity.Order{}).
			Where("id = ?", o.Id).
			Updates(map[string]interface{}{"status": status, "updated_at": at}).Error
	})
	if err != nil {
		return "", err
	}
	return prev, nil
}

func (r *orderRepositoryImpl) CountStats(ctx context.Context, since time.Time) (*repository.OrderStatsCount, error) {
	var out repository.OrderStatsCount
	db := r.db.WithContext(ctx).Model(&entity.Order{})

	if err := db.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", entity.StatusPending).Count(&out.New).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status IN ?", entity.InProgressStatuses).Count(&out.InProgress).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("status = ?", entity.StatusDelivered).Count(&out.Completed).Error; err != nil {
		return nil, err
	}
	if err := db.Session(&gorm.Session{}).Where("created_at >= ?", since).Count(&out.Today).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
