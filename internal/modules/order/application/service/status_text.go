package service

import "fmt"

var statusMessages = map[string]string{
	"pending":            "Your order #%s has been placed and is awaiting confirmation",
	"processing":         "Great news! Your order #%s is being prepared by the store",
	"ready_for_pickup":   "Your order #%s is ready for pickup at the store",
	"ready_for_delivery": "Your order #%s is ready and waiting for driver assignment",
	"driver_assigned":    "A driver has been assigned to deliver your order #%s",
	"picked_up":          "Your order #%s has been picked up and is on its way!",
	"in_transit":         "Your order #%s is on its way to you!",
	"delivered":          "Your order #%s has been successfully delivered. Thank you!",
	"cancelled":          "Your order #%s has been cancelled",
}

var statusPriorities = map[string]string{
	"pending":            PriorityHigh,
	"processing":         PriorityMedium,
	"ready_for_pickup":   PriorityMedium,
	"ready_for_delivery": PriorityHigh,
	"driver_assigned":    PriorityMedium,
	"picked_up":          PriorityMedium,
	"in_transit":         PriorityMedium,
	"delivered":          PriorityLow,
	"cancelled":          PriorityHigh,
}

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// StatusMessage 顾客看到的状态文案
func StatusMessage(status, orderNumber string) string {
	if f, ok := statusMessages[status]; ok {
		return fmt.Sprintf(f, orderNumber)
	}
	return fmt.Sprintf("Your order #%s status has been updated to %s", orderNumber, status)
}

// StatusPriority 门店侧通知优先级，未知状态为 medium
func StatusPriority(status string) string {
	if p, ok := statusPriorities[status]; ok {
		return p
	}
	return PriorityMedium
}
