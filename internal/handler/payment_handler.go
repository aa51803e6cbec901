package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/pkg/logger"
	"github.com/noah-isme/print-hub-api/pkg/response"
)

type paymentService interface {
	Initiate(ctx context.Context, req dto.InitiatePaymentRequest, actor models.Actor) (*models.PaymentInitiation, error)
	HandleCallback(ctx context.Context, cb models.PaymentCallback) (*models.Order, error)
	Verify(ctx context.Context, paymentID string) (*models.PaymentVerification, error)
}

// PaymentHandler exposes the hosted payment handshake.
type PaymentHandler struct {
	payments paymentService
	logger   *zap.Logger
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(payments paymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// Process godoc
// @Summary Initiate payment
// @Description Returns the signed parameters to post to the gateway
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.InitiatePaymentRequest true "Payment request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payment/process [post]
func (h *PaymentHandler) Process(c *gin.Context) {
	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payment payload"))
		return
	}

	res, err := h.payments.Initiate(c.Request.Context(), req, requestActor(c, models.ActorCustomer))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Callback godoc
// @Summary Gateway callback
// @Description Receives the gateway's signed result. Always acknowledged with 200.
// @Tags Payments
// @Accept x-www-form-urlencoded
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /payment/callback [post]
func (h *PaymentHandler) Callback(c *gin.Context) {
	log := logger.FromContext(h.logger, c)

	var cb models.PaymentCallback
	if err := c.ShouldBind(&cb); err != nil {
		log.Warn("payment callback could not be parsed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := h.payments.HandleCallback(c.Request.Context(), cb); err != nil {
		_ = c.Error(err)
		log.Info("payment callback not applied", zap.String("order_id", cb.OrderID), zap.String("txn_id", cb.TxnID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// Verify godoc
// @Summary Verify payment
// @Tags Payments
// @Produce json
// @Param paymentId path string true "Payment id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payment/verify/{paymentId} [get]
func (h *PaymentHandler) Verify(c *gin.Context) {
	res, err := h.payments.Verify(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
