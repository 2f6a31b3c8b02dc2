package order

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusProcessing       Status = "processing"
	StatusReadyForPickup   Status = "ready_for_pickup"
	StatusReadyForDelivery Status = "ready_for_delivery"
	StatusDriverAssigned   Status = "driver_assigned"
	StatusPickedUp         Status = "picked_up"
	StatusInTransit        Status = "in_transit"
	StatusDelivered        Status = "delivered"
	StatusCancelled        Status = "cancelled"
	// 旧数据里的取值，仍按非终态处理
	StatusShipped Status = "shipped"
)

const (
	TypePickup   = "pickup"
	TypeDelivery = "delivery"
)

// IsTerminal delivered / cancelled 之后不会再变化
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

var ErrMissingID = errors.New("order: missing _id")

// Record 订单的原始字段表。
// 推送和 REST 快照里的字段并不固定，按字段浅合并才能保留客户端没有建模的部分。
type Record map[string]json.RawMessage

// ParseRecord 解析一个 JSON 对象，要求带 _id
func ParseRecord(raw json.RawMessage) (Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrMissingID
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	if r.ID() == "" {
		return nil, ErrMissingID
	}
	return r, nil
}

// ParseFields 解析 changes 之类不要求 _id 的字段表
func ParseFields(raw json.RawMessage) (Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Record{}, nil
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, err
	}
	return r, nil
}

func (r Record) ID() string {
	return r.str("_id")
}

func (r Record) OrderNumber() string {
	return r.str("orderNumber")
}

func (r Record) Status() Status {
	return Status(r.str("status"))
}

func (r Record) OrderType() string {
	return r.str("orderType")
}

func (r Record) CreatedAt() time.Time {
	return r.time("createdAt")
}

func (r Record) UpdatedAt() time.Time {
	return r.time("updatedAt")
}

// Merge 返回 r 与 others 依次浅合并后的新表，r 本身不变
func (r Record) Merge(others ...Record) Record {
	out := r.Clone()
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Decode 把字段表解码成具体结构
func (r Record) Decode(v interface{}) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (r Record) str(key string) string {
	raw, ok := r[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// 数字 id 之类的非字符串取值
	v := strings.TrimSpace(string(raw))
	if v == "null" {
		return ""
	}
	return v
}

func (r Record) time(key string) time.Time {
	raw, ok := r[key]
	if !ok {
		return time.Time{}
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return time.Time{}
	}
	return t
}

// Item 订单行
type Item struct {
	Product  json.RawMessage `json:"product,omitempty"`
	Name     string          `json:"name,omitempty"`
	Quantity int             `json:"quantity"`
	Price    float64         `json:"price"`
}

// Order 订单的类型化视图，由 Record.Decode 得到
type Order struct {
	ID          string    `json:"_id"`
	OrderNumber string    `json:"orderNumber"`
	Status      Status    `json:"status"`
	Items       []Item    `json:"items,omitempty"`
	Subtotal    float64   `json:"subtotal"`
	Tax         float64   `json:"tax"`
	Total       float64   `json:"total"`
	OrderType   string    `json:"orderType"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DeliveryInfo 每次 delivery_update 整体覆盖
type DeliveryInfo struct {
	OrderID               string     `json:"orderId"`
	Status                Status     `json:"status"`
	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime,omitempty"`
	OrderType             string     `json:"orderType,omitempty"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}
