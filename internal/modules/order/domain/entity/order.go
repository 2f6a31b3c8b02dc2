package entity

import (
	"time"
)

const (
	StatusPending          = "pending"
	StatusProcessing       = "processing"
	StatusReadyForPickup   = "ready_for_pickup"
	StatusReadyForDelivery = "ready_for_delivery"
	StatusDriverAssigned   = "driver_assigned"
	StatusPickedUp         = "picked_up"
	StatusInTransit        = "in_transit"
	StatusDelivered        = "delivered"
	StatusCancelled        = "cancelled"
	StatusShipped          = "shipped"
)

// ValidStatus 允许写入的状态
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReadyForPickup, StatusReadyForDelivery,
		StatusDriverAssigned, StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled, StatusShipped:
		return true
	}
	return false
}

// InProgressStatuses 统计里算作“处理中”的状态
var InProgressStatuses = []string{
	StatusProcessing, StatusReadyForPickup, StatusReadyForDelivery,
	StatusDriverAssigned, StatusPickedUp, StatusInTransit,
}

const (
	TypePickup   = "pickup"
	TypeDelivery = "delivery"
)

// TaxRate 税率 8%
const TaxRate = 0.08

// DeliveryTrackedStatus 需要额外推送 delivery_update 的状态
func DeliveryTrackedStatus(s string) bool {
	return s == StatusInTransit || s == StatusReadyForDelivery || s == StatusDriverAssigned
}

type OrderItem struct {
	ProductID string  `json:"product"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order 订单表，JSON 输出与推送负载里的 order 字段一致
type Order struct {
	Id                    int64       `gorm:"column:id;primaryKey;comment:自增id" json:"-"`
	Uuid                  string      `gorm:"column:uuid;uniqueIndex;type:char(32);not null;comment:订单uuid" json:"_id"`
	OrderNumber           string      `gorm:"column:order_number;uniqueIndex;type:varchar(32);not null;comment:订单号" json:"orderNumber"`
	CustomerId            string      `gorm:"column:customer_id;index;type:char(36);not null;comment:下单用户" json:"customer"`
	Status                string      `gorm:"column:status;index;type:varchar(32);not null;default:pending;comment:订单状态" json:"status"`
	OrderType             string      `gorm:"column:order_type;type:varchar(16);not null;default:pickup;comment:pickup/delivery" json:"orderType"`
	Items                 []OrderItem `gorm:"column:items;serializer:json;type:json;comment:订单行" json:"items"`
	Subtotal              float64     `gorm:"column:subtotal;not null;default:0" json:"subtotal"`
	Tax                   float64     `gorm:"column:tax;not null;default:0" json:"tax"`
	Tip                   float64     `gorm:"column:tip;not null;default:0" json:"tip"`
	BagFee                float64     `gorm:"column:bag_fee;not null;default:0" json:"bagFee"`
	Total                 float64     `gorm:"column:total;not null;default:0" json:"total"`
	EstimatedDeliveryTime *time.Time  `gorm:"column:estimated_delivery_time;comment:预计送达时间" json:"estimatedDeliveryTime,omitempty"`
	CreatedAt             time.Time   `gorm:"column:created_at;index;not null;comment:创建时间" json:"createdAt"`
	UpdatedAt             time.Time   `gorm:"column:updated_at;not null;comment:更新时间" json:"updatedAt"`
}

func (Order) TableName() string {
	return "order_info"
}
