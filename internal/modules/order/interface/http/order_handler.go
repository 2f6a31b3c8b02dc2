package handler

import (
	orderRequest "OrderPulse/internal/modules/order/application/dto/request"
	"OrderPulse/internal/modules/order/application/dto/respond"
	"OrderPulse/internal/modules/order/application/service"
	"OrderPulse/internal/modules/order/domain/repository"
	"OrderPulse/internal/middleware/jwt"
	"OrderPulse/pkg/back"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/xerr"
	"OrderPulse/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	svc      service.OrderService
	presence repository.PresenceRepository
	hub      *ws.Hub
}

func NewOrderHandler(svc service.OrderService, presence repository.PresenceRepository, hub *ws.Hub) *OrderHandler {
	return &OrderHandler{svc: svc, presence: presence, hub: hub}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req orderRequest.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.CreateOrder(c.Request.Context(), jwt.Claims(c), req)
	back.Result(c, data, err)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	data, err := h.svc.GetOrder(c.Request.Context(), jwt.Claims(c), c.Param("id"))
	back.Result(c, data, err)
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	list, err := h.svc.ListMyOrders(c.Request.Context(), jwt.Claims(c))
	if err != nil {
		back.Result(c, nil, err)
		return
	}
	back.Success(c, respond.OrderListRespond{Orders: list, Count: len(list)})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req orderRequest.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}
	data, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	back.Result(c, data, err)
}

func (h *OrderHandler) Online(c *gin.Context) {
	out := respond.OnlineRespond{Local: h.hub.OnlineUsers()}
	n, err := h.presence.Count(c.Request.Context())
	if err != nil {
		// Redis 不可用时退回本实例数
		zlog.Warn("presence count failed", zap.Error(err))
		n = int64(out.Local)
	}
	out.Online = n
	back.Success(c, out)
}
