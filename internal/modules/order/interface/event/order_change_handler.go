package event

import (
	"context"
	"encoding/json"

	"OrderPulse/internal/modules/order/application/service"
	"OrderPulse/internal/modules/order/domain/entity"
	"OrderPulse/internal/modules/order/infrastructure/mq"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

// OrderChangeHandler 消费 order-changes topic，交给广播服务
type OrderChangeHandler struct {
	svc service.BroadcastService
}

func NewOrderChangeHandler(svc service.BroadcastService) *OrderChangeHandler {
	return &OrderChangeHandler{svc: svc}
}

var _ mq.Handler = (*OrderChangeHandler)(nil)

func (h *OrderChangeHandler) Handle(ctx context.Context, msg mq.Message) error {
	var change entity.OrderChange
	if err := json.Unmarshal(msg.Value, &change); err != nil {
		// 坏消息直接跳过
		zlog.Warn("drop malformed order change", zap.ByteString("key", msg.Key), zap.Error(err))
		return nil
	}
	if change.OrderId == "" {
		change.OrderId = string(msg.Key)
	}
	if change.OperationType == "" {
		change.OperationType = msg.Headers["operation"]
	}
	if err := h.svc.HandleChange(ctx, change); err != nil {
		zlog.Error("handle order change failed",
			zap.String("order_id", change.OrderId),
			zap.String("operation", change.OperationType),
			zap.Error(err))
		return err
	}
	return nil
}
