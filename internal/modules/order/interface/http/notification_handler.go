package handler

import (
	orderRequest "OrderPulse/internal/modules/order/application/dto/request"
	"OrderPulse/internal/modules/order/application/service"
	"OrderPulse/pkg/back"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/xerr"
	"OrderPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultNotificationType = "info"

type NotificationHandler struct {
	svc service.BroadcastService
}

func NewNotificationHandler(svc service.BroadcastService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Notify POST /realtime/notify，仅门店账号
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req orderRequest.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	if req.Target == orderRequest.NotifyTargetCustomer && req.CustomerID == "" {
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	n := ws.CustomerNotification{
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		OrderID:  req.OrderID,
		Priority: req.Priority,
	}
	if n.Type == "" {
		n.Type = defaultNotificationType
	}

	var err error
	if req.Target == orderRequest.NotifyTargetCustomer {
		err = h.svc.SendCustomerNotification(req.CustomerID, n)
	} else {
		err = h.svc.SendStoreNotification(n)
	}
	if err != nil {
		zlog.Error("send notification failed", zap.String("target", req.Target), zap.Error(err))
		back.Result(c, nil, xerr.ErrServerError)
		return
	}
	back.Success(c, nil)
}
