package ws

import "encoding/json"

// Envelope 线上帧格式：{"event": "...", "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope 序列化 data 并封装成帧
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return Envelope{Event: event, Data: raw}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: b}, nil
}

// 服务端 -> 客户端
const (
	EventConnectionStatus     = "connection_status"
	EventCustomerNotification = "customer_notification"
	EventCustomerOrderUpdate  = "customer_order_update"
	EventSingleOrderUpdate    = "single_order_update"
	EventDeliveryUpdate       = "delivery_update"
	EventOrderStatsUpdate     = "order_stats_update"
	EventOrderNotification    = "order_notification"
	EventStoreNotification    = "store_notification"
)

// 客户端 -> 服务端
const (
	EventJoinOrderRoom  = "join_order_room"
	EventLeaveOrderRoom = "leave_order_room"
)

// 房间命名
const (
	RoomCustomers          = "customers"
	RoomStoreNotifications = "store_notifications"
)

func CustomerRoom(userID string) string {
	return "customer_" + userID
}

func OrderRoom(orderID string) string {
	return "order_" + orderID
}
