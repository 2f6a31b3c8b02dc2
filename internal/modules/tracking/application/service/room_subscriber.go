package service

import (
	"OrderPulse/pkg/socket"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

// Emitter 房间订阅需要的连接能力，*socket.Manager 满足
type Emitter interface {
	Emit(event string, data interface{}) error
	State() socket.State
}

// RoomSubscriber 只在已连接时加入/离开订单房间，未连接时直接忽略（不排队）
type RoomSubscriber struct {
	conn Emitter
}

func NewRoomSubscriber(conn Emitter) *RoomSubscriber {
	return &RoomSubscriber{conn: conn}
}

func (r *RoomSubscriber) JoinOrderRoom(orderID string) bool {
	return r.emit(ws.EventJoinOrderRoom, orderID)
}

func (r *RoomSubscriber) LeaveOrderRoom(orderID string) bool {
	return r.emit(ws.EventLeaveOrderRoom, orderID)
}

func (r *RoomSubscriber) emit(event, orderID string) bool {
	if r == nil || r.conn == nil || orderID == "" {
		return false
	}
	if r.conn.State() != socket.StateConnected {
		zlog.Debug("socket not connected, skip room event",
			zap.String("event", event), zap.String("order_id", orderID))
		return false
	}
	if err := r.conn.Emit(event, orderID); err != nil {
		zlog.Warn("room event failed", zap.String("event", event), zap.String("order_id", orderID), zap.Error(err))
		return false
	}
	zlog.Info(event, zap.String("order_id", orderID))
	return true
}
