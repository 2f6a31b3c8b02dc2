package notification

import "time"

const (
	// 通知类型，其余类型原样保留
	TypeOrderCreated           = "order_created"
	TypeOrderStatusUpdate      = "order_status_update"
	TypeDeliveryTrackingUpdate = "delivery_tracking_update"
	TypeOrderStatsUpdate       = "order_stats_update"

	// 列表上限
	DefaultLimit = 50
)

// Notification 客户端通知条目，只存在内存中
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message"`
	OrderID   string    `json:"orderId,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Toastable 需要弹出提示的通知类型
func (n Notification) Toastable() bool {
	return n.Type == TypeOrderStatusUpdate || n.Type == TypeOrderCreated
}
