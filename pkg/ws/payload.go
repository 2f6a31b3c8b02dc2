package ws

import (
	"encoding/json"
	"time"
)

// 单订单房间里的变更类型
const (
	OperationCreated = "created"
	OperationUpdated = "updated"
	OperationDeleted = "deleted"
)

// 通知/更新的 type 字段
const (
	TypeConnected              = "connected"
	TypeOrderCreated           = "order_created"
	TypeOrderStatusUpdate      = "order_status_update"
	TypeDeliveryTrackingUpdate = "delivery_tracking_update"
	TypeOrderStatsUpdate       = "order_stats_update"
	TypeSingleOrderUpdate      = "single_order_update"
	TypeNewOrder               = "new_order"
	TypeOrderUpdate            = "order_update"
	TypeOrderDeleted           = "order_deleted"
)

type ConnectionStatus struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

// CustomerNotification customer_notification / store_notification 的负载
type CustomerNotification struct {
	Type      string    `json:"type"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	OrderID   string    `json:"orderId,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

// CustomerOrderUpdate 推送给下单用户个人房间
type CustomerOrderUpdate struct {
	Type           string          `json:"type"`
	Order          json.RawMessage `json:"order,omitempty"`
	Message        string          `json:"message,omitempty"`
	PreviousStatus string          `json:"previousStatus,omitempty"`
	NewStatus      string          `json:"newStatus,omitempty"`
	Timestamp      Timestamp       `json:"timestamp"`
}

// SingleOrderUpdate 推送给 order_<id> 房间
type SingleOrderUpdate struct {
	Type      string          `json:"type"`
	Operation string          `json:"operation"`
	Order     json.RawMessage `json:"order,omitempty"`
	OrderID   string          `json:"orderId,omitempty"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	Timestamp Timestamp       `json:"timestamp"`
}

type DeliveryUpdate struct {
	Type                  string     `json:"type"`
	OrderID               string     `json:"orderId"`
	Status                string     `json:"status"`
	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime,omitempty"`
	OrderType             string     `json:"orderType,omitempty"`
}

// OrderNotification 门店侧 order_notification
type OrderNotification struct {
	Type      string          `json:"type"`
	Order     json.RawMessage `json:"order,omitempty"`
	OrderID   string          `json:"orderId,omitempty"`
	Message   string          `json:"message"`
	Priority  string          `json:"priority"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	Timestamp Timestamp       `json:"timestamp"`
}

type OrderStats struct {
	Total      int64 `json:"total"`
	New        int64 `json:"new"`
	InProgress int64 `json:"inProgress"`
	Completed  int64 `json:"completed"`
	Today      int64 `json:"today"`
}

type OrderStatsUpdate struct {
	Type      string          `json:"type"`
	Stats     json.RawMessage `json:"stats"`
	Timestamp Timestamp       `json:"timestamp"`
}
