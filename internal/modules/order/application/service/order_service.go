package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"OrderPulse/internal/modules/order/application/dto/request"
	"OrderPulse/internal/modules/order/domain/entity"
	"OrderPulse/internal/modules/order/domain/repository"
	"OrderPulse/internal/modules/order/infrastructure/mq"
	"OrderPulse/pkg/util"
	"OrderPulse/pkg/util/myjwt"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/xerr"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const myOrdersLimit = 50

type OrderService interface {
	CreateOrder(ctx context.Context, who *myjwt.CustomClaims, req request.CreateOrderRequest) (*entity.Order, error)
	GetOrder(ctx context.Context, who *myjwt.CustomClaims, orderID string) (*entity.Order, error)
	ListMyOrders(ctx context.Context, who *myjwt.CustomClaims) ([]entity.Order, error)
	UpdateStatus(ctx context.Context, orderID string, req request.UpdateOrderStatusRequest) (*entity.Order, error)
	Stats(ctx context.Context) (*ws.OrderStats, error)
}

type orderServiceImpl struct {
	repo      repository.OrderRepository
	publisher mq.Publisher
	topic     string
	now       func() time.Time
}

// NewOrderService 写操作落库后向 topic 发布 OrderChange
func NewOrderService(repo repository.OrderRepository, publisher mq.Publisher, topic string) OrderService {
	return &orderServiceImpl{repo: repo, publisher: publisher, topic: topic, now: time.Now}
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, who *myjwt.CustomClaims, req request.CreateOrderRequest) (*entity.Order, error) {
	if who == nil || who.Uuid == "" {
		return nil, xerr.New(xerr.Unauthorized, "未登录")
	}
	orderType := strings.TrimSpace(req.OrderType)
	if orderType == "" {
		orderType = entity.TypeDelivery
	}
	if orderType != entity.TypeDelivery && orderType != entity.TypePickup {
		return nil, xerr.New(xerr.BadRequest, "非法的订单类型")
	}
	if len(req.Items) == 0 {
		return nil, xerr.New(xerr.BadRequest, "订单不能为空")
	}

	now := s.now()
	o := &entity.Order{
		Uuid:        util.GenerateShortUUID(),
		OrderNumber: fmt.Sprintf("ORD-%d-%03d", now.UnixMilli(), rand.Intn(1000)),
		CustomerId:  who.Uuid,
		Status:      entity.StatusPending,
		OrderType:   orderType,
		Tip:         req.Tip,
		BagFee:      req.BagFee,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, it := range req.Items {
		o.Items = append(o.Items, entity.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		o.Subtotal += it.Price * float64(it.Quantity)
	}
	o.Subtotal = round2(o.Subtotal)
	o.Tax = round2(o.Subtotal * entity.TaxRate)
	o.Total = round2(o.Subtotal + o.Tax + o.Tip + o.BagFee)

	if err := s.repo.Create(ctx, o); err != nil {
		zlog.Error("create order failed", zap.Error(err))
		return nil, xerr.ErrServerError
	}

	s.publish(ctx, entity.OrderChange{
		OperationType: entity.OperationInsert,
		OrderId:       o.Uuid,
		CustomerId:    o.CustomerId,
		OrderNumber:   o.OrderNumber,
		OccurredAt:    now,
	})
	return o, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, who *myjwt.CustomClaims, orderID string) (*entity.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, xerr.ErrParam
	}
	o, err := s.repo.GetByUUID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrOrderNotFound
		}
		zlog.Error("get order failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	// 顾客只能看自己的订单
	if who != nil && !who.IsStaff() && o.CustomerId != who.Uuid {
		return nil, xerr.ErrForbidden
	}
	return o, nil
}

func (s *orderServiceImpl) ListMyOrders(ctx context.Context, who *myjwt.CustomClaims) ([]entity.Order, error) {
	if who == nil || who.Uuid == "" {
		return nil, xerr.New(xerr.Unauthorized, "未登录")
	}
	list, err := s.repo.ListByCustomer(ctx, who.Uuid, myOrdersLimit)
	if err != nil {
		zlog.Error("list orders failed", zap.String("customer_id", who.Uuid), zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return list, nil
}

func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID string, req request.UpdateOrderStatusRequest) (*entity.Order, error) {
	status := strings.TrimSpace(req.Status)
	if !entity.ValidStatus(status) {
		return nil, xerr.ErrBadStatus
	}

	now := s.now()
	prev, err := s.repo.UpdateStatus(ctx, orderID, status, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, xerr.ErrOrderNotFound
		}
		zlog.Error("update order status failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	o, err := s.repo.GetByUUID(ctx, orderID)
	if err != nil {
		zlog.Error("reload order failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, xerr.ErrServerError
	}

	// 状态没变不产生变更消息
	if prev != status {
		s.publish(ctx, entity.OrderChange{
			OperationType:  entity.OperationUpdate,
			OrderId:        o.Uuid,
			CustomerId:     o.CustomerId,
			OrderNumber:    o.OrderNumber,
			UpdatedFields:  map[string]interface{}{"status": status, "updatedAt": now},
			PreviousStatus: prev,
			OccurredAt:     now,
		})
	}
	return o, nil
}

func (s *orderServiceImpl) Stats(ctx context.Context) (*ws.OrderStats, error) {
	c, err := s.repo.CountStats(ctx, startOfDay(s.now()))
	if err != nil {
		zlog.Error("count order stats failed", zap.Error(err))
		return nil, xerr.ErrServerError
	}
	return &ws.OrderStats{
		Total:      c.Total,
		New:        c.New,
		InProgress: c.InProgress,
		Completed:  c.Completed,
		Today:      c.Today,
	}, nil
}

// publish 失败只记日志，订单已经落库
func (s *orderServiceImpl) publish(ctx context.Context, change entity.OrderChange) {
	if s.publisher == nil {
		return
	}
	b, err := json.Marshal(change)
	if err != nil {
		zlog.Error("marshal order change failed", zap.Error(err))
		return
	}
	_, err = s.publisher.Publish(ctx, mq.Message{
		Topic:   s.topic,
		Key:     []byte(change.OrderId),
		Value:   b,
		Headers: map[string]string{"operation": change.OperationType},
	})
	if err != nil {
		zlog.Warn("publish order change failed",
			zap.String("order_id", change.OrderId),
			zap.String("operation", change.OperationType),
			zap.Error(err))
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
