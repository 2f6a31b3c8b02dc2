package request

type CreateOrderItem struct {
	ProductID string  `json:"product" binding:"required"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
	Price     float64 `json:"price" binding:"min=0"`
}

type CreateOrderRequest struct {
	OrderType string            `json:"orderType"`
	Items     []CreateOrderItem `json:"items" binding:"required,min=1,dive"`
	Tip       float64           `json:"tip" binding:"min=0"`
	BagFee    float64           `json:"bagFee" binding:"min=0"`
}
