package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/pkg/response"
)

type reportService interface {
	Daily(ctx context.Context, date string) (*models.DailyReport, error)
	Monthly(ctx context.Context, year, month int) (*models.MonthlyReport, error)
	Revenue(ctx context.Context, periodDays int) (*models.RevenueReport, error)
	Export(ctx context.Context, reportType models.ReportType, format models.ReportFormat, date string, year, month int) (*models.ExportFile, error)
}

// ReportHandler exposes sales reports.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Daily godoc
// @Summary Daily report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param date query string false "YYYY-MM-DD, defaults to today (UTC)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/daily [get]
func (h *ReportHandler) Daily(c *gin.Context) {
	var q dto.DailyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	report, err := h.service.Daily(c.Request.Context(), q.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Monthly godoc
// @Summary Monthly report
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param year query int false "Year"
// @Param month query int false "Month 1-12"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/monthly [get]
func (h *ReportHandler) Monthly(c *gin.Context) {
	var q dto.MonthlyReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	report, err := h.service.Monthly(c.Request.Context(), q.Year, q.Month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Revenue godoc
// @Summary Revenue over the trailing period
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param period query int false "Days, default 30"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/revenue [get]
func (h *ReportHandler) Revenue(c *gin.Context) {
	var q dto.RevenueReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	report, err := h.service.Revenue(c.Request.Context(), q.Period)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Export godoc
// @Summary Export orders
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param type path string true "daily or monthly"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/export/{type} [get]
func (h *ReportHandler) Export(c *gin.Context) {
	var q dto.ExportReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, invalidPayload(err, "invalid query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), models.ReportType(c.Param("type")), models.ReportFormat(q.Format), q.Date, q.Year, q.Month)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
