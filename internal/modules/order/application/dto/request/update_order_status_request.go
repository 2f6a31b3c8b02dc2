package request

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
