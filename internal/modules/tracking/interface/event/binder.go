package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"OrderPulse/internal/modules/tracking/application/service"
	"OrderPulse/internal/modules/tracking/domain/notification"
	"OrderPulse/pkg/socket"
	"OrderPulse/pkg/ws"
	"OrderPulse/pkg/zlog"

	"go.uber.org/zap"
)

const ConnectionLostMessage = "Connection lost. Please refresh the page."

const orderSyncTimeout = 10 * time.Second

// Source 事件来源，*socket.Manager 满足
type Source interface {
	On(event string, fn socket.Handler) socket.ListenerID
	Off(event string, id socket.ListenerID)
}

// AlertFunc 面向用户的告警（重连预算耗尽时触发一次）
type AlertFunc func(message string)

// Binder 把连接上的事件路由到通知列表和订单集合
type Binder struct {
	src        Source
	store      *service.NotificationStore
	reconciler *service.OrderReconciler
	alert      AlertFunc

	mu     sync.Mutex
	ids    map[string]socket.ListenerID
	lister service.OrderLister
}

func NewBinder(src Source, store *service.NotificationStore, reconciler *service.OrderReconciler, alert AlertFunc) *Binder {
	return &Binder{
		src:        src,
		store:      store,
		reconciler: reconciler,
		alert:      alert,
		ids:        make(map[string]socket.ListenerID),
	}
}

// Bind 注册全部监听，重复调用无效果
func (b *Binder) Bind() {
	handlers := map[string]socket.Handler{
		socket.EventConnect:          b.onConnect,
		socket.EventDisconnect:       b.onDisconnect,
		socket.EventConnectError:     b.onConnectError,
		socket.EventReconnect:        b.onReconnect,
		socket.EventConnectionLost:   b.onConnectionLost,
		ws.EventConnectionStatus:     b.onConnectionStatus,
		ws.EventCustomerNotification: b.onCustomerNotification,
		ws.EventCustomerOrderUpdate:  b.onCustomerOrderUpdate,
		ws.EventSingleOrderUpdate:    b.onSingleOrderUpdate,
		ws.EventDeliveryUpdate:       b.onDeliveryUpdate,
		ws.EventOrderStatsUpdate:     b.onOrderStatsUpdate,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ids) > 0 {
		return
	}
	for event, h := range handlers {
		b.ids[event] = b.src.On(event, h)
	}
}

// EnableOrderSync 每次 connect 后先用 REST 列表刷新订单集合，再恢复订单房间
func (b *Binder) EnableOrderSync(l service.OrderLister) {
	b.mu.Lock()
	b.lister = l
	b.mu.Unlock()
}

func (b *Binder) Unbind() {
	b.mu.Lock()
	ids := b.ids
	b.ids = make(map[string]socket.ListenerID)
	b.mu.Unlock()
	for event, id := range ids {
		b.src.Off(event, id)
	}
}

// onConnect 在分发协程里同步拉取，拉取期间到达的增量排在快照之后处理
func (b *Binder) onConnect(json.RawMessage) {
	b.mu.Lock()
	l := b.lister
	b.mu.Unlock()
	if l != nil {
		ctx, cancel := context.WithTimeout(context.Background(), orderSyncTimeout)
		_ = b.reconciler.SyncOrders(ctx, l)
		cancel()
	}
	b.reconciler.Rejoin()
}

func (b *Binder) onDisconnect(data json.RawMessage) {
	var reason string
	_ = json.Unmarshal(data, &reason)
	zlog.Info("disconnected from real-time server", zap.String("reason", reason))
}

func (b *Binder) onConnectError(data json.RawMessage) {
	var msg string
	_ = json.Unmarshal(data, &msg)
	zlog.Warn("real-time connection error", zap.String("error", msg))
}

func (b *Binder) onReconnect(data json.RawMessage) {
	var attempt int
	_ = json.Unmarshal(data, &attempt)
	zlog.Info("reconnected to real-time server", zap.Int("attempt", attempt))
}

func (b *Binder) onConnectionLost(json.RawMessage) {
	zlog.Error(ConnectionLostMessage)
	if b.alert != nil {
		b.alert(ConnectionLostMessage)
	}
}

func (b *Binder) onConnectionStatus(data json.RawMessage) {
	st, ok := decode[ws.ConnectionStatus](ws.EventConnectionStatus, data)
	if !ok {
		return
	}
	zlog.Info("connection status", zap.String("message", st.Message))
}

func (b *Binder) onCustomerNotification(data json.RawMessage) {
	p, ok := decode[ws.CustomerNotification](ws.EventCustomerNotification, data)
	if !ok {
		return
	}
	n := notification.Notification{
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		OrderID:   p.OrderID,
		Priority:  p.Priority,
		Timestamp: p.Timestamp.Time,
	}
	b.store.Add(n)
}

func (b *Binder) onCustomerOrderUpdate(data json.RawMessage) {
	u, ok := decode[ws.CustomerOrderUpdate](ws.EventCustomerOrderUpdate, data)
	if !ok {
		return
	}
	b.reconciler.ApplyCustomerOrderUpdate(u)

	if u.Message == "" {
		return
	}
	n := notification.Notification{
		Type:      u.Type,
		Message:   u.Message,
		Timestamp: u.Timestamp.Time,
	}
	if rec, ok := b.reconciler.GetOrderByID(orderIDOf(u.Order)); ok {
		n.OrderID = rec.ID()
	}
	b.store.Add(n)
}

func (b *Binder) onSingleOrderUpdate(data json.RawMessage) {
	u, ok := decode[ws.SingleOrderUpdate](ws.EventSingleOrderUpdate, data)
	if !ok {
		return
	}
	b.reconciler.ApplyDelta(u)
}

func (b *Binder) onDeliveryUpdate(data json.RawMessage) {
	u, ok := decode[ws.DeliveryUpdate](ws.EventDeliveryUpdate, data)
	if !ok {
		return
	}
	b.reconciler.ApplyDeliveryUpdate(u)
	if _, known := b.reconciler.GetOrderByID(u.OrderID); !known {
		return
	}
	b.store.Add(notification.Notification{
		Type:      notification.TypeDeliveryTrackingUpdate,
		Message:   "Delivery status: " + u.Status,
		OrderID:   u.OrderID,
		Timestamp: time.Now(),
	})
}

func (b *Binder) onOrderStatsUpdate(data json.RawMessage) {
	u, ok := decode[ws.OrderStatsUpdate](ws.EventOrderStatsUpdate, data)
	if !ok {
		return
	}
	b.reconciler.ApplyStats(u.Stats)
}

func decode[T any](event string, data json.RawMessage) (T, bool) {
	var v T
	if len(data) == 0 {
		zlog.Warn("empty payload", zap.String("event", event))
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		zlog.Warn("malformed payload", zap.String("event", event), zap.Error(err))
		return v, false
	}
	return v, true
}

func orderIDOf(raw json.RawMessage) string {
	var head struct {
		ID string `json:"_id"`
	}
	_ = json.Unmarshal(raw, &head)
	return head.ID
}
