package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/print-hub-api/internal/models"
)

// CreateOrderRequest is the form part of POST /print-job. The file travels separately.
type CreateOrderRequest struct {
	RollNumber   string              `json:"rollNumber" validate:"required,max=50"`
	TotalPages   int                 `json:"totalPages" validate:"gte=1"`
	ColorPages   int                 `json:"colorPages" validate:"gte=0"`
	BWPages      int                 `json:"bwPages" validate:"gte=0"`
	Price        decimal.Decimal     `json:"price"`
	PrintOptions models.PrintOptions `json:"printOptions"`
}

// OrderSummary is the public view of an order returned on creation and tracking.
type OrderSummary struct {
	ID            string               `json:"id"`
	Token         string               `json:"token"`
	RollNumber    string               `json:"rollNumber"`
	FileName      string               `json:"fileName,omitempty"`
	TotalPages    int                  `json:"totalPages"`
	ColorPages    int                  `json:"colorPages"`
	BWPages       int                  `json:"bwPages"`
	Price         decimal.Decimal      `json:"price"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// NewOrderSummary projects an order onto its public view.
func NewOrderSummary(o *models.Order) OrderSummary {
	return OrderSummary{
		ID:            o.ID,
		Token:         o.Token,
		RollNumber:    o.RollNumber,
		FileName:      o.FileName,
		TotalPages:    o.TotalPages,
		ColorPages:    o.ColorPages,
		BWPages:       o.BWPages,
		Price:         o.Price,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// NewOrderSummaries projects a slice of orders.
func NewOrderSummaries(orders []models.Order) []OrderSummary {
	out := make([]OrderSummary, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderSummary(&orders[i]))
	}
	return out
}
