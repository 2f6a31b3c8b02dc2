package entity

import "time"

const (
	OperationInsert = "insert"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OrderChange 订单变更消息（order-changes topic），由写入方在落库后发布
type OrderChange struct {
	OperationType  string                 `json:"operationType"`
	OrderId        string                 `json:"orderId"`
	CustomerId     string                 `json:"customerId,omitempty"`
	OrderNumber    string                 `json:"orderNumber,omitempty"`
	UpdatedFields  map[string]interface{} `json:"updatedFields,omitempty"`
	PreviousStatus string                 `json:"previousStatus,omitempty"`
	OccurredAt     time.Time              `json:"occurredAt"`
}
