package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"OrderPulse/internal/modules/order/domain/entity"
	"OrderPulse/internal/modules/order/domain/repository"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Emitter 按房间推送，*ws.Hub 实现
type Emitter interface {
	EmitToRoom(room, event string, data interface{}) (int, error)
}

type StatsSource interface {
	Stats(ctx context.Context) (*ws.OrderStats, error)
}

// BroadcastService 把订单变更翻译成各房间的推送
type BroadcastService interface {
	HandleChange(ctx context.Context, change entity.OrderChange) error
	BroadcastStats(ctx context.Context) error
	SendCustomerNotification(customerID string, n ws.CustomerNotification) error
	SendStoreNotification(n ws.CustomerNotification) error
}

type broadcastServiceImpl struct {
	repo    repository.OrderRepository
	stats   StatsSource
	emitter Emitter
	now     func() time.Time
}

func NewBroadcastService(repo repository.OrderRepository, stats StatsSource, emitter Emitter) BroadcastService {
	return &broadcastServiceImpl{repo: repo, stats: stats, emitter: emitter, now: time.Now}
}

func (s *broadcastServiceImpl) HandleChange(ctx context.Context, change entity.OrderChange) error {
	zlog.Info("order change received",
		zap.String("operation", change.OperationType),
		zap.String("order_id", change.OrderId))

	switch change.OperationType {
	case entity.OperationInsert:
		return s.handleNewOrder(ctx, change)
	case entity.OperationUpdate:
		return s.handleOrderUpdate(ctx, change)
	case entity.OperationDelete:
		return s.handleOrderDeletion(change)
	default:
		zlog.Warn("unknown order change operation", zap.String("operation", change.OperationType))
		return nil
	}
}

// loadOrder 订单已被删除时返回 nil, nil
func (s *broadcastServiceImpl) loadOrder(ctx context.Context, id string) (*entity.Order, json.RawMessage, error) {
	o, err := s.repo.GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			zlog.Warn("order of change not found", zap.String("order_id", id))
			return nil, nil, nil
		}
		return nil, nil, err
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, nil, err
	}
	return o, raw, nil
}

func (s *broadcastServiceImpl) handleNewOrder(ctx context.Context, change entity.OrderChange) error {
	o, raw, err := s.loadOrder(ctx, change.OrderId)
	if err != nil || o == nil {
		return err
	}
	now := s.now()

	s.emit(ws.RoomStoreNotifications, ws.EventOrderNotification, ws.OrderNotification{
		Type:      ws.TypeNewOrder,
		Order:     raw,
		Message:   fmt.Sprintf("New order #%s received", o.OrderNumber),
		Priority:  PriorityHigh,
		Timestamp: ws.At(now),
	})

	if o.CustomerId != "" {
		s.emit(ws.CustomerRoom(o.CustomerId), ws.EventCustomerOrderUpdate, ws.CustomerOrderUpdate{
			Type:      ws.TypeOrderCreated,
			Order:     raw,
			Message:   fmt.Sprintf("Your order #%s has been placed successfully", o.OrderNumber),
			Timestamp: ws.At(now),
		})
	}

	s.emit(ws.OrderRoom(o.Uuid), ws.EventSingleOrderUpdate, ws.SingleOrderUpdate{
		Type:      ws.TypeSingleOrderUpdate,
		Operation: ws.OperationCreated,
		Order:     raw,
		Timestamp: ws.At(now),
	})

	zlog.Info("new order notifications sent", zap.String("order_number", o.OrderNumber))
	return nil
}

func (s *broadcastServiceImpl) handleOrderUpdate(ctx context.Context, change entity.OrderChange) error {
	o, raw, err := s.loadOrder(ctx, change.OrderId)
	if err != nil || o == nil {
		return err
	}
	now := s.now()

	var changes json.RawMessage
	if len(change.UpdatedFields) > 0 {
		if changes, err = json.Marshal(change.UpdatedFields); err != nil {
			return err
		}
	}

	if newStatus, _ := change.UpdatedFields["status"].(string); newStatus != "" {
		wrapped, err := json.Marshal(map[string]json.RawMessage{"updatedFields": changes})
		if err != nil {
			return err
		}
		s.emit(ws.RoomStoreNotifications, ws.EventOrderNotification, ws.OrderNotification{
			Type:      ws.TypeOrderUpdate,
			Order:     raw,
			Message:   fmt.Sprintf("Order #%s status updated to %s", o.OrderNumber, newStatus),
			Priority:  StatusPriority(newStatus),
			Changes:   wrapped,
			Timestamp: ws.At(now),
		})

		if o.CustomerId != "" {
			s.emit(ws.CustomerRoom(o.CustomerId), ws.EventCustomerOrderUpdate, ws.CustomerOrderUpdate{
				Type:           ws.TypeOrderStatusUpdate,
				Order:          raw,
				Message:        StatusMessage(newStatus, o.OrderNumber),
				PreviousStatus: change.PreviousStatus,
				NewStatus:      newStatus,
				Timestamp:      ws.At(now),
			})

			if entity.DeliveryTrackedStatus(newStatus) {
				s.emit(ws.CustomerRoom(o.CustomerId), ws.EventDeliveryUpdate, ws.DeliveryUpdate{
					Type:                  ws.TypeDeliveryTrackingUpdate,
					OrderID:               o.Uuid,
					Status:                newStatus,
					EstimatedDeliveryTime: o.EstimatedDeliveryTime,
					OrderType:             o.OrderType,
				})
			}
		}
	}

	s.emit(ws.OrderRoom(o.Uuid), ws.EventSingleOrderUpdate, ws.SingleOrderUpdate{
		Type:      ws.TypeSingleOrderUpdate,
		Operation: ws.OperationUpdated,
		Order:     raw,
		Changes:   changes,
		Timestamp: ws.At(now),
	})

	zlog.Info("order update notifications sent", zap.String("order_number", o.OrderNumber))
	return nil
}

func (s *broadcastServiceImpl) handleOrderDeletion(change entity.OrderChange) error {
	now := s.now()
	s.emit(ws.RoomStoreNotifications, ws.EventOrderNotification, ws.OrderNotification{
		Type:      ws.TypeOrderDeleted,
		OrderID:   change.OrderId,
		Message:   "An order has been deleted",
		Priority:  PriorityMedium,
		Timestamp: ws.At(now),
	})
	s.emit(ws.OrderRoom(change.OrderId), ws.EventSingleOrderUpdate, ws.SingleOrderUpdate{
		Type:      ws.TypeSingleOrderUpdate,
		Operation: ws.OperationDeleted,
		OrderID:   change.OrderId,
		Timestamp: ws.At(now),
	})
	zlog.Info("order deletion notifications sent", zap.String("order_id", change.OrderId))
	return nil
}

func (s *broadcastServiceImpl) BroadcastStats(ctx context.Context) error {
	stats, err := s.stats.Stats(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	s.emit(ws.RoomStoreNotifications, ws.EventOrderStatsUpdate, ws.OrderStatsUpdate{
		Type:      ws.TypeOrderStatsUpdate,
		Stats:     raw,
		Timestamp: ws.At(s.now()),
	})
	return nil
}

func (s *broadcastServiceImpl) SendCustomerNotification(customerID string, n ws.CustomerNotification) error {
	if customerID == "" {
		return errors.New("customer id is empty")
	}
	n.Timestamp = ws.At(s.now())
	_, err := s.emitter.EmitToRoom(ws.CustomerRoom(customerID), ws.EventCustomerNotification, n)
	return err
}

func (s *broadcastServiceImpl) SendStoreNotification(n ws.CustomerNotification) error {
	n.Timestamp = ws.At(s.now())
	_, err := s.emitter.EmitToRoom(ws.RoomStoreNotifications, ws.EventStoreNotification, n)
	return err
}

func (s *broadcastServiceImpl) emit(room, event string, data interface{}) {
	n, err := s.emitter.EmitToRoom(room, event, data)
	if err != nil {
		zlog.Error("emit failed", zap.String("room", room), zap.String("event", event), zap.Error(err))
		return
	}
	zlog.Debug("emitted", zap.String("room", room), zap.String("event", event), zap.Int("receivers", n))
}
