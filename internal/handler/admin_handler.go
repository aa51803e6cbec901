package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/pkg/response"
)

type adminOrderService interface {
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.OrderDetail, error)
	Update(ctx context.Context, id string, req dto.UpdateOrderRequest, actor models.Actor) (*models.Order, error)
}

type adminSettingsService interface {
	Get(ctx context.Context) (models.PaymentSettings, error)
	Update(ctx context.Context, req dto.UpdatePaymentSettingsRequest, actor models.Actor) (models.PaymentSettings, error)
}

type adminPaymentStats interface {
	Stats(ctx context.Context) (*models.PaymentStats, error)
}

type adminFileLister interface {
	List() ([]models.StoredFile, error)
}

// AdminHandler serves the operator console.
type AdminHandler struct {
	orders   adminOrderService
	settings adminSettingsService
	payments adminPaymentStats
	files    adminFileLister
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(orders adminOrderService, settings adminSettingsService, payments adminPaymentStats, files adminFileLister) *AdminHandler {
	return &AdminHandler{orders: orders, settings: settings, payments: payments, files: files}
}

// ListOrders godoc
// @Summary List orders
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Order status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/orders [get]
func (h *AdminHandler) ListOrders(c *gin.Context) {
	filter := models.OrderFilter{
		Page:     atoiDefault(c.Query("page"), 1),
		PageSize: atoiDefault(c.Query("limit"), 0),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.OrderStatus(raw)
		filter.Status = &status
	}

	orders, pagination, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, pagination)
}

// GetOrder godoc
// @Summary Order detail with audit history
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/orders/{id} [get]
func (h *AdminHandler) GetOrder(c *gin.Context) {
	detail, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// UpdateOrder godoc
// @Summary Override order status
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order id"
// @Param payload body dto.UpdateOrderRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/orders/{id} [put]
func (h *AdminHandler) UpdateOrder(c *gin.Context) {
	var req dto.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid order update payload"))
		return
	}

	order, err := h.orders.Update(c.Request.Context(), c.Param("id"), req, requestActor(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, order)
}

// ListFiles godoc
// @Summary List stored files
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/files [get]
func (h *AdminHandler) ListFiles(c *gin.Context) {
	files, err := h.files.List()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, files)
}

// GetPaymentSettings godoc
// @Summary Payment settings
// @Description The merchant key is masked
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/payment-settings [get]
func (h *AdminHandler) GetPaymentSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}

// UpdatePaymentSettings godoc
// @Summary Update payment settings
// @Description A blank merchantKey keeps the stored key
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.UpdatePaymentSettingsRequest true "Settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/payment-settings [put]
func (h *AdminHandler) UpdatePaymentSettings(c *gin.Context) {
	var req dto.UpdatePaymentSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payment settings payload"))
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), req, requestActor(c, ""))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settings)
}

// PaymentStats godoc
// @Summary Payment statistics for the last 30 days
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/payment-stats [get]
func (h *AdminHandler) PaymentStats(c *gin.Context) {
	stats, err := h.payments.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
