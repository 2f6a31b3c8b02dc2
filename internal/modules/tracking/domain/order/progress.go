package order

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var statusFlow = []Status{
	StatusPending,
	StatusProcessing,
	StatusReadyForPickup,
	StatusReadyForDelivery,
	StatusDriverAssigned,
	StatusPickedUp,
	StatusInTransit,
	StatusDelivered,
}

// Progress 状态在流程中的百分比，取消或未知状态为 0
func Progress(s Status) float64 {
	if s == StatusCancelled {
		return 0
	}
	for i, st := range statusFlow {
		if st == s {
			return float64(i+1) / float64(len(statusFlow)) * 100
		}
	}
	return 0
}

// EstimatedCompletion 优先用配送信息里的预计送达时间，否则按下单时间粗估
func EstimatedCompletion(r Record, info *DeliveryInfo) time.Time {
	if info != nil && info.EstimatedDeliveryTime != nil && !info.EstimatedDeliveryTime.IsZero() {
		return *info.EstimatedDeliveryTime
	}
	created := r.CreatedAt()
	if created.IsZero() {
		return time.Time{}
	}
	switch r.OrderType() {
	case TypePickup:
		return created.Add(15 * time.Minute)
	case TypeDelivery:
		return created.Add(60 * time.Minute)
	default:
		return created.Add(30 * time.Minute)
	}
}

// StatusDisplay in_transit -> In Transit
func StatusDisplay(s Status) string {
	words := strings.Fields(strings.ReplaceAll(string(s), "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
