package respond

import "OrderPulse/internal/modules/order/domain/entity"

type OrderListRespond struct {
	Orders []entity.Order `json:"orders"`
	Count  int            `json:"count"`
}
