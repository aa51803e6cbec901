package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/pkg/response"
)

type orderTracker interface {
	GetByToken(ctx context.Context, token string) (*models.Order, error)
	ListByRoll(ctx context.Context, rollNumber string) ([]models.Order, error)
}

// TrackingHandler serves public order status lookups.
type TrackingHandler struct {
	orders orderTracker
}

// NewTrackingHandler constructs the handler.
func NewTrackingHandler(orders orderTracker) *TrackingHandler {
	return &TrackingHandler{orders: orders}
}

// ByToken godoc
// @Summary Track order
// @Tags Tracking
// @Produce json
// @Param token path string true "Order token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking/{token} [get]
func (h *TrackingHandler) ByToken(c *gin.Context) {
	order, err := h.orders.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrderSummary(order))
}

// ByRoll godoc
// @Summary Track orders by roll number
// @Description Lists a customer's orders, newest first
// @Tags Tracking
// @Produce json
// @Param rollNumber path string true "Roll number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tracking/roll/{rollNumber} [get]
func (h *TrackingHandler) ByRoll(c *gin.Context) {
	orders, err := h.orders.ListByRoll(c.Request.Context(), c.Param("rollNumber"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrderSummaries(orders))
}
