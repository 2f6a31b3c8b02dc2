package request

const (
	NotifyTargetCustomer = "customer"
	NotifyTargetStore    = "store"
)

// SendNotificationRequest 门店手动推送：customer 发到 customer_<id>，store 发到 store_notifications
type SendNotificationRequest struct {
	Target     string `json:"target" binding:"required,oneof=customer store"`
	CustomerID string `json:"customerId"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message" binding:"required"`
	OrderID    string `json:"orderId"`
	Priority   string `json:"priority"`
}
