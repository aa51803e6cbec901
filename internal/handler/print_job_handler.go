package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/internal/service"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/response"
)

// multipartOverhead leaves room for the form fields around the file part.
const multipartOverhead = 1 << 20

type fileIngester interface {
	Ingest(ctx context.Context, upload service.Upload) (*models.FileReference, error)
	MaxFileSize() int64
}

type printJobService interface {
	Create(ctx context.Context, req dto.CreateOrderRequest, file *models.FileReference, actor models.Actor) (*models.Order, error)
	Cancel(ctx context.Context, token string, actor models.Actor) (*models.Order, error)
	PreviewURL(ctx context.Context, token string) (*models.PreviewLink, error)
}

// PrintJobHandler accepts print job submissions.
type PrintJobHandler struct {
	ingestion fileIngester
	orders    printJobService
}

// NewPrintJobHandler constructs the handler.
func NewPrintJobHandler(ingestion fileIngester, orders printJobService) *PrintJobHandler {
	return &PrintJobHandler{ingestion: ingestion, orders: orders}
}

// Create godoc
// @Summary Submit print job
// @Description Uploads a file and records a priced order
// @Tags PrintJobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Document"
// @Param rollNumber formData string true "Roll number"
// @Param totalPages formData int true "Total pages"
// @Param colorPages formData int false "Color pages"
// @Param bwPages formData int false "Black & white pages"
// @Param price formData string true "Quoted price"
// @Param printOptions formData string false "Print options JSON"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /print-job [post]
func (h *PrintJobHandler) Create(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.ingestion.MaxFileSize()+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.ErrTooLarge)
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}

	req, err := bindCreateOrderForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, invalidPayload(err, "unable to read uploaded file"))
		return
	}
	defer file.Close()

	ref, err := h.ingestion.Ingest(c.Request.Context(), service.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req, ref, requestActor(c, models.ActorCustomer))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewOrderSummary(order))
}

func bindCreateOrderForm(c *gin.Context) (dto.CreateOrderRequest, error) {
	req := dto.CreateOrderRequest{RollNumber: strings.TrimSpace(c.PostForm("rollNumber"))}

	ints := []struct {
		field string
		dest  *int
	}{
		{"totalPages", &req.TotalPages},
		{"colorPages", &req.ColorPages},
		{"bwPages", &req.BWPages},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(c.PostForm(f.field))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, invalidPayload(err, f.field+" must be an integer")
		}
		*f.dest = n
	}

	price, err := decimal.NewFromString(strings.TrimSpace(c.PostForm("price")))
	if err != nil {
		return req, invalidPayload(err, "price must be a decimal number")
	}
	req.Price = price

	if raw := strings.TrimSpace(c.PostForm("printOptions")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.PrintOptions); err != nil {
			return req, invalidPayload(err, "printOptions must be valid JSON")
		}
	}
	return req, nil
}

// Preview godoc
// @Summary Preview link
// @Description Returns a signed, time-limited link to the order's file
// @Tags PrintJobs
// @Produce json
// @Param token path string true "Order token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /print-job/preview/{token} [get]
func (h *PrintJobHandler) Preview(c *gin.Context) {
	link, err := h.orders.PreviewURL(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Cancel godoc
// @Summary Cancel print job
// @Description Cancels a pending order within 30 seconds of creation and removes its file
// @Tags PrintJobs
// @Produce json
// @Param token path string true "Order token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /print-job/{token} [delete]
func (h *PrintJobHandler) Cancel(c *gin.Context) {
	order, err := h.orders.Cancel(c.Request.Context(), c.Param("token"), requestActor(c, models.ActorCustomer))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrderSummary(order))
}
