package dto

import "github.com/noah-isme/print-hub-api/internal/models"

// UpdateOrderRequest is the operator override payload for PUT /admin/orders/:id.
type UpdateOrderRequest struct {
	Status        *models.OrderStatus   `json:"status" validate:"omitempty,oneof=pending processing completed cancelled"`
	PaymentStatus *models.PaymentStatus `json:"paymentStatus" validate:"omitempty,oneof=pending paid failed"`
}
